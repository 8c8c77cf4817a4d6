package main

import (
	"fmt"

	"github.com/fatih/color"

	"schooldir/internal/config"
	"schooldir/pkg/logger"
)

func printSignature(cfg *config.Config) {
	cyan := color.New(color.FgHiCyan, color.Bold).SprintFunc()
	white := color.New(color.FgWhite).SprintFunc()
	dim := color.New(color.FgHiBlack).SprintFunc()

	w := logger.Writer()
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s : %s\n", cyan("Service    "), white(cfg.App.Name))
	fmt.Fprintf(w, "%s : %s\n", cyan("Version    "), white(cfg.App.Version))
	fmt.Fprintf(w, "%s : %s\n", cyan("Database   "), white(cfg.Database.Driver))
	fmt.Fprintf(w, "%s : %s\n", cyan("Uploads    "),
		dim(fmt.Sprintf("%d-%d files, %s each", cfg.Upload.MinFiles, cfg.Upload.MaxFiles, cfg.Upload.MaxFileSize)))
	fmt.Fprintln(w)
}
