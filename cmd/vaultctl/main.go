// Command vaultctl is a minimal smoke-test binary that exercises the
// host-facing manager API end to end: create/open, add a credential, list,
// save, close. It is not a full CLI surface; it takes exactly one flag.
// Reads the passphrase without echo via golang.org/x/term and renders
// archive activity with github.com/schollz/progressbar/v3.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"

	"github.com/vaultcore/vaultcore/src/config"
	"github.com/vaultcore/vaultcore/src/credential"
	"github.com/vaultcore/vaultcore/src/manager"
)

func main() {
	dbPath := flag.String("db", "", "path to the vaultcore archive")
	flag.Parse()

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	if *dbPath == "" {
		fmt.Fprintln(os.Stderr, "usage: vaultctl -db <path>")
		os.Exit(2)
	}

	opts, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("loading configuration")
	}

	m := manager.NewDesktopManager(opts)
	ctx := context.Background()

	pass, err := readPassphrase("passphrase: ")
	if err != nil {
		log.Fatal().Err(err).Msg("reading passphrase")
	}

	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetDescription("opening archive"),
		progressbar.OptionSpinnerType(14),
	)

	if _, statErr := os.Stat(*dbPath); os.IsNotExist(statErr) {
		bar.Describe("creating archive")
		if err := m.Create(ctx, *dbPath, pass); err != nil {
			log.Fatal().Err(err).Msg("create")
		}
	} else {
		if err := m.Open(ctx, *dbPath, pass); err != nil {
			log.Fatal().Err(err).Msg("open")
		}
	}
	bar.Finish()

	id, err := m.Add(credential.CredentialRecord{
		Title:          "Example",
		CredentialType: "login",
		Fields: map[string]credential.CredentialField{
			"username": credential.NewField(credential.FieldUsername, "demo@example.com", false),
			"password": credential.NewField(credential.FieldPassword, "change-me-immediately!", false),
		},
	})
	if err != nil {
		log.Fatal().Err(err).Msg("add")
	}
	log.Info().Str("id", id).Msg("added demo credential")

	summaries, err := m.ListSummaries()
	if err != nil {
		log.Fatal().Err(err).Msg("list")
	}
	for _, s := range summaries {
		fmt.Printf("%s  %-30s  %s\n", s.ID, s.Title, s.CredentialType)
	}

	if err := m.Save(ctx); err != nil {
		log.Fatal().Err(err).Msg("save")
	}
	if err := m.Close(ctx); err != nil {
		log.Fatal().Err(err).Msg("close")
	}
}

func readPassphrase(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
