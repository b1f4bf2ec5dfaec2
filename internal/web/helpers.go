package web

import (
	"strconv"
	"time"
)

func itoa(value int) string {
	return strconv.Itoa(value)
}

func age(since, now time.Time) string {
	d := now.Sub(since).Round(time.Second)
	if d < time.Minute {
		return "just now"
	}
	if d < time.Hour {
		return itoa(int(d/time.Minute)) + "m"
	}
	return itoa(int(d/time.Hour)) + "h"
}
