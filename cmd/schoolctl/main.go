package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"schooldir/pkg/client"
)

const apiEnv = "SCHOOLDIR_API_URL"

// GLOBAL FLAGS
var (
	apiURL  string
	timeout time.Duration
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "schoolctl",
		Short:         "Command line client for the school directory",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	defaultAPI := os.Getenv(apiEnv)
	if defaultAPI == "" {
		defaultAPI = client.DefaultBaseURL
	}
	rootCmd.PersistentFlags().StringVar(&apiURL, "api", defaultAPI, "API base URL (env "+apiEnv+")")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", client.DefaultTimeout, "Per-request timeout")

	rootCmd.AddCommand(
		listCmd(),
		searchCmd(),
		getCmd(),
		createCmd(),
		imageCmd(),
		healthCmd(),
		seedCmd(),
		benchCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		printError(err)
		os.Exit(1)
	}
}

func newClient(opts ...client.Option) *client.Client {
	return client.New(apiURL, append([]client.Option{client.WithTimeout(timeout)}, opts...)...)
}

func printError(err error) {
	var apiErr *client.APIError
	switch {
	case errors.As(err, &apiErr):
		pterm.Error.Printf("%s (HTTP %d)\n", apiErr.Message, apiErr.Status)
	case errors.Is(err, client.ErrUnreachable):
		pterm.Error.Printf("Cannot reach %s: %v\n", apiURL, err)
	default:
		pterm.Error.Println(err.Error())
	}
}
