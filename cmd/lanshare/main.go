// Command lanshare shares one folder with every device on the local network.
package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"
)

// Build information, set with -ldflags.
var (
	Version = "dev"
	Commit  = "none"
)

var cfgFile string

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "lanshare",
		Short: "Share a folder over the local network",
		Long: `lanshare serves one folder over HTTP so other devices on the same network
can browse it, download from it and upload into it, and shows who is
currently connected.

Configuration is read from lanshare.toml (or .yaml/.json) in the current
directory or in ~/.lanshare, then from LANSHARE_* environment variables
(for example LANSHARE_PORT=9000), then from flags.`,
		SilenceUsage: true,
		RunE:         runServe,
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./lanshare.toml)")
	addServeFlags(root)

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Start the file sharing server",
		RunE:  runServe,
	}
	addServeFlags(serve)

	root.AddCommand(serve, newConfigCmd(), newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "lanshare %s\n", Version)
			fmt.Fprintf(out, "  Commit:     %s\n", Commit)
			fmt.Fprintf(out, "  Go version: %s\n", runtime.Version())
			fmt.Fprintf(out, "  OS/Arch:    %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
