package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/smarty/prebuilt/core"
	"github.com/smarty/prebuilt/shell"
)

func main() {
	log.SetFlags(log.Ltime | log.Lshortfile)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var code int
	if isSubCommand("check") {
		code = checkMain(ctx, os.Args[2:])
	} else if isSubCommand("uninstall") {
		code = uninstallMain(os.Args[2:])
	} else if isSubCommand("pack") {
		code = packMain(os.Args[2:])
	} else if isSubCommand("version") {
		versionMain()
	} else if isSubCommand("install") {
		code = installMain(ctx, os.Args[2:])
	} else {
		code = installMain(ctx, os.Args[1:])
	}
	stop()
	os.Exit(code)
}

func isSubCommand(name string) bool {
	return len(os.Args) > 1 && os.Args[1] == name
}

func newConfigLoader() *core.ConfigLoader {
	return core.NewConfigLoader(shell.NewDiskFileSystem(""), shell.NewEnvironment(), os.Stdin, os.Stderr)
}

func versionMain() {
	fmt.Printf("prebuilt [%s]\n", ldflagsSoftwareVersion)
}

var ldflagsSoftwareVersion = "debug"
