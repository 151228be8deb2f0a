package main

import (
	appcmd "github.com/tobayashi-san/arch-appcenter/cmd"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	appcmd.SetVersionInfo(version, commit)
	appcmd.Execute()
}
