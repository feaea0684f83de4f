package presence

import (
	"testing"

	"github.com/understudybot/understudy/internal/core"
)

func shadowConfig() core.SessionConfig {
	return core.SessionConfig{
		Nick:          "understudy",
		CompanionNick: "mainbot",
		Channels:      []string{"#lab", "#ops"},
	}
}

func TestCanReply_Standalone(t *testing.T) {
	t.Parallel()
	cfg := shadowConfig()
	cfg.CompanionNick = ""
	tr := NewTracker(cfg, nil)

	if !tr.CanReply("#lab", false) {
		t.Error("standalone mode must always allow replies")
	}
}

func TestCanReply_Private(t *testing.T) {
	t.Parallel()
	tr := NewTracker(shadowConfig(), nil)
	tr.HandleJoin("mainbot", "#lab")

	if tr.CanReply("#lab", false) {
		t.Error("must not reply while the companion is present")
	}
	if !tr.CanReply("#lab", true) {
		t.Error("private messages always allow replies")
	}
}

func TestCanReply_UnresolvedStateStaysMuted(t *testing.T) {
	t.Parallel()
	tr := NewTracker(shadowConfig(), nil)

	if tr.StateOf("#lab") != Unknown {
		t.Fatalf("state = %v, want Unknown before the first WHOIS", tr.StateOf("#lab"))
	}
	if tr.CanReply("#lab", false) {
		t.Error("must not reply until the companion state resolves to absent")
	}

	tr.ApplyWhoisEnd()
	if !tr.CanReply("#lab", false) {
		t.Error("must reply once the companion is known absent")
	}
}

func TestJoinPartTransitions(t *testing.T) {
	t.Parallel()
	var notes []string
	tr := NewTracker(shadowConfig(), func(subject, body string) {
		notes = append(notes, body)
	})

	tr.HandleJoin("mainbot", "#lab")
	if tr.StateOf("#lab") != Present {
		t.Fatalf("state = %v, want Present", tr.StateOf("#lab"))
	}
	if tr.StateOf("#ops") != Unknown {
		t.Fatalf("join in one channel must not affect another")
	}

	// A repeated join is not a transition.
	tr.HandleJoin("mainbot", "#lab")
	if len(notes) != 1 {
		t.Fatalf("got %d notifications, want 1", len(notes))
	}

	tr.HandlePart("mainbot", "#lab")
	if tr.StateOf("#lab") != Absent {
		t.Fatalf("state = %v, want Absent", tr.StateOf("#lab"))
	}
	if len(notes) != 2 {
		t.Fatalf("got %d notifications, want 2", len(notes))
	}
}

func TestJoinIgnoresOtherNicks(t *testing.T) {
	t.Parallel()
	tr := NewTracker(shadowConfig(), nil)
	tr.HandleJoin("alice", "#lab")

	if tr.StateOf("#lab") != Unknown {
		t.Error("other nicks must not change companion state")
	}
}

func TestQuitMarksAllAbsent(t *testing.T) {
	t.Parallel()
	tr := NewTracker(shadowConfig(), nil)
	tr.HandleJoin("mainbot", "#lab")
	tr.HandleJoin("mainbot", "#ops")

	tr.HandleQuit("mainbot", "ping timeout")

	for _, ch := range []string{"#lab", "#ops"} {
		if tr.StateOf(ch) != Absent {
			t.Errorf("state of %s = %v, want Absent", ch, tr.StateOf(ch))
		}
	}
}

func TestKick(t *testing.T) {
	t.Parallel()
	tr := NewTracker(shadowConfig(), nil)
	tr.HandleJoin("mainbot", "#lab")
	tr.HandleJoin("mainbot", "#ops")

	tr.HandleKick("mainbot", "#lab", "op")

	if tr.StateOf("#lab") != Absent {
		t.Error("kicked channel must go Absent")
	}
	if tr.StateOf("#ops") != Present {
		t.Error("kick must not affect other channels")
	}
}

func TestRenameAwayFromCompanion(t *testing.T) {
	t.Parallel()
	tr := NewTracker(shadowConfig(), nil)
	tr.HandleJoin("mainbot", "#lab")

	if tr.HandleRename("mainbot", "mainbot_away") {
		t.Error("rename away must not request a WHOIS")
	}
	if tr.StateOf("#lab") != Absent {
		t.Error("rename away marks the companion absent everywhere")
	}
}

func TestRenameIntoCompanionRequestsWhois(t *testing.T) {
	t.Parallel()
	tr := NewTracker(shadowConfig(), nil)

	if !tr.HandleRename("someone", "mainbot") {
		t.Error("rename into the companion nick must request a WHOIS")
	}
}

func TestMarkSpoke(t *testing.T) {
	t.Parallel()
	tr := NewTracker(shadowConfig(), nil)
	tr.HandleJoin("mainbot", "#lab")
	tr.HandlePart("mainbot", "#lab")

	if !tr.MarkSpoke("#lab", "hello") {
		t.Error("speaking while believed absent is a transition")
	}
	if tr.StateOf("#lab") != Present {
		t.Error("speaking proves presence")
	}
	if tr.MarkSpoke("#lab", "again") {
		t.Error("speaking while present is not a transition")
	}
}

func TestApplyWhoisChannels(t *testing.T) {
	t.Parallel()
	tr := NewTracker(shadowConfig(), nil)

	tr.ApplyWhoisChannels([]string{"#lab", "#unrelated"})

	if tr.StateOf("#lab") != Present {
		t.Error("channel in WHOIS reply must go Present")
	}
	if tr.StateOf("#ops") != Absent {
		t.Error("monitored channel missing from WHOIS reply must go Absent")
	}

	// The end of this lookup must not overwrite the resolved states.
	tr.ApplyWhoisEnd()
	if tr.StateOf("#lab") != Present {
		t.Error("ApplyWhoisEnd after a channel reply must keep states")
	}
}

func TestApplyWhoisEnd_CompanionOffline(t *testing.T) {
	t.Parallel()
	tr := NewTracker(shadowConfig(), nil)

	tr.ApplyWhoisEnd()

	for _, ch := range []string{"#lab", "#ops"} {
		if tr.StateOf(ch) != Absent {
			t.Errorf("state of %s = %v, want Absent", ch, tr.StateOf(ch))
		}
	}
}

func TestStateString(t *testing.T) {
	t.Parallel()
	cases := map[State]string{
		Present: "PRESENT",
		Absent:  "GONE",
		Unknown: "UNKNOWN",
	}
	for state, want := range cases {
		if got := state.String(); got != want {
			t.Errorf("String(%d) = %q, want %q", state, got, want)
		}
	}
}
