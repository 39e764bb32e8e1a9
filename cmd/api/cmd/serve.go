package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os/signal"
	"strings"
	"syscall"
	"unicode"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"commit-reveal-voting/api"
	"commit-reveal-voting/log"
	"commit-reveal-voting/models"
	"commit-reveal-voting/service"
	"commit-reveal-voting/storage"
	"commit-reveal-voting/storage/mem"
	"commit-reveal-voting/storage/postgres"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the voting API",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().String("listen", ":8080", "address the HTTP API listens on")
	serveCmd.Flags().String("storage.driver", "json", "round state backend ('json', 'memory', 'postgres')")
	serveCmd.Flags().String("storage.dsn", "", "postgres connection string")
	serveCmd.Flags().String("signer", "", "trusted signer address (default is the administrator)")
	serveCmd.Flags().StringSlice("candidates", nil, "candidate names (default toto, tata, tutu)")
	serveCmd.Flags().String("signatures", "", "path of the signature book served under /api/whitelist")
	serveCmd.Flags().Int("queue.size", 64, "pending mutation capacity")

	bindFlags(serveCmd, "listen", "storage.driver", "storage.dsn", "signer", "candidates", "signatures", "queue.size")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	cfg, err := serviceConfig()
	if err != nil {
		return err
	}

	votingService, err := service.NewVotingService(ctx, cfg, store)
	if err != nil {
		return fmt.Errorf("failed to start voting service: %w", err)
	}

	if admin, ok := votingService.AdminAddress(); ok {
		log.Info("Administrator key loaded", zap.Stringer("address", admin), zap.String("path", cfg.AdminKeyPath))
	}

	queue := service.NewQueueProcessor(votingService, viper.GetInt("queue.size"))
	queue.Start()
	defer queue.Stop()

	server := api.NewServer(votingService, queue)
	if err := server.Serve(ctx, api.APIConfig{APIEndpoint: viper.GetString("listen")}); err != nil {
		return err
	}

	log.Info("Got interrupt, shutting down...")
	return nil
}

func openStore() (storage.Store, error) {
	switch driver := viper.GetString("storage.driver"); driver {
	case "json", "":
		return storage.NewJSONStore(viper.GetString("storage.dir"))
	case "memory":
		log.Warn("Using in-memory storage, the round is lost on shutdown")
		return mem.NewMemStore(), nil
	case "postgres":
		dsn := viper.GetString("storage.dsn")
		if dsn == "" {
			return nil, errors.New("storage.dsn is required for the postgres driver")
		}
		return postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", driver)
	}
}

func serviceConfig() (service.Config, error) {
	cfg := service.Config{
		AdminKeyPath: adminKeyPath(),
	}

	if signer := viper.GetString("signer"); signer != "" {
		addr, err := service.ParseAddress(signer)
		if err != nil {
			return cfg, fmt.Errorf("invalid signer: %w", err)
		}
		cfg.TrustedSigner = addr
	}

	cfg.Candidates = parseCandidates(viper.GetStringSlice("candidates"))

	if path := viper.GetString("signatures"); path != "" {
		book, err := storage.LoadSignatureBook(path)
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return cfg, err
			}
			log.Warn("Signature book not found", zap.String("path", path))
		} else {
			cfg.Signatures = book
			log.Info("Loaded signature book", zap.Int("voters", len(book)))
		}
	}

	return cfg, nil
}

// parseCandidates splits every value on commas and spaces, so lists set in the
// environment work as well as repeated flags.
func parseCandidates(values []string) []models.Candidate {
	var candidates []models.Candidate
	for _, value := range values {
		for _, name := range strings.FieldsFunc(value, func(r rune) bool {
			return r == ',' || unicode.IsSpace(r)
		}) {
			candidates = append(candidates, models.Candidate(name))
		}
	}
	return candidates
}
