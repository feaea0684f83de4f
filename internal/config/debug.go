package config

import "os"

func IsDebug() bool {
	return os.Getenv("UNDERSTUDY_DEBUG") == "1"
}
