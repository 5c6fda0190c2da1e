// stickers is the operator command line: it prints batches of fresh ticket
// codes for the print shop and mints operator tokens for the admin API.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/paperplay/sticker-service/internal/auth"
	"github.com/paperplay/sticker-service/internal/config"
	"github.com/paperplay/sticker-service/internal/observability"
	"github.com/paperplay/sticker-service/internal/persistence"
	"github.com/paperplay/sticker-service/internal/repository"
	"github.com/paperplay/sticker-service/internal/service"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	if len(args) == 0 {
		printUsage(out)
		return errors.New("missing command")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	switch args[0] {
	case "issue":
		return runIssue(cfg, args[1:], out)
	case "token":
		return runToken(cfg, args[1:], out)
	case "help", "-h", "--help":
		printUsage(out)
		return nil
	default:
		printUsage(out)
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func printUsage(out io.Writer) {
	fmt.Fprint(out, `Usage:
  stickers issue --count N [--prefix P] [--format text|yaml]
  stickers token [--subject NAME] [--ttl DURATION]
`)
}

func runIssue(cfg *config.Config, args []string, out io.Writer) error {
	var (
		count  int
		prefix string
		format string
	)
	flagSet := pflag.NewFlagSet("issue", pflag.ContinueOnError)
	flagSet.SetOutput(out)
	flagSet.IntVarP(&count, "count", "n", 0, "number of tickets to issue")
	flagSet.StringVarP(&prefix, "prefix", "p", "", "batch id used as code prefix (default: time based)")
	flagSet.StringVarP(&format, "format", "f", "text", "output format: text or yaml")
	if err := flagSet.Parse(args); err != nil {
		return err
	}
	if format != "text" && format != "yaml" {
		return fmt.Errorf("unknown format %q", format)
	}
	if cfg.Postgres.DSN == "" {
		return errors.New("POSTGRES_DSN is required to issue tickets")
	}

	logCfg := cfg.Logger
	logCfg.Output = "stderr"
	logger, err := observability.NewLogger(logCfg, cfg.App)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pg.Close()

	tickets := service.NewTicketService(service.TicketDependencies{
		TicketRepo: repository.NewTicketRepository(pg.PoolHandle()),
		Logger:     logger.With(zap.String("cmd", "issue")),
		Issue:      cfg.Issue,
	})
	return issueBatch(ctx, tickets, count, prefix, format, out)
}

type manifest struct {
	BatchID  string          `yaml:"batch_id"`
	IssuedAt time.Time       `yaml:"issued_at"`
	Tickets  []manifestEntry `yaml:"tickets"`
}

type manifestEntry struct {
	Code string `yaml:"code"`
	Link string `yaml:"link"`
}

func issueBatch(ctx context.Context, tickets *service.TicketService, count int, prefix, format string, out io.Writer) error {
	batch, err := tickets.IssueBatch(ctx, count, prefix)
	if err != nil {
		return err
	}

	if format == "yaml" {
		m := manifest{BatchID: batch.ID, IssuedAt: tickets.Now()}
		for _, t := range batch.Tickets {
			m.Tickets = append(m.Tickets, manifestEntry{Code: t.Code, Link: tickets.ShareLink(t.Code)})
		}
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(m); err != nil {
			return err
		}
		return enc.Close()
	}

	for _, t := range batch.Tickets {
		if _, err := fmt.Fprintf(out, "%s\t%s\n", t.Code, tickets.ShareLink(t.Code)); err != nil {
			return err
		}
	}
	return nil
}

func runToken(cfg *config.Config, args []string, out io.Writer) error {
	var (
		subject string
		ttl     time.Duration
	)
	flagSet := pflag.NewFlagSet("token", pflag.ContinueOnError)
	flagSet.SetOutput(out)
	flagSet.StringVarP(&subject, "subject", "s", "operator", "operator name recorded on events")
	flagSet.DurationVar(&ttl, "ttl", 0, "token lifetime (default: AUTH_ACCESS_TOKEN_TTL_MINUTES)")
	if err := flagSet.Parse(args); err != nil {
		return err
	}

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	token, expiresAt, err := tokens.GenerateToken(subject, ttl)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "%s\n# expires %s\n", token, expiresAt.UTC().Format(time.RFC3339))
	return err
}
