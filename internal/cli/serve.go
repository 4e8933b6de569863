package cli

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/agonv/tapertrack/internal/server"
)

type ServeCmd struct {
	Addr      string `help:"Listen address." default:":8080" env:"TAPERTRACK_ADDR"`
	DB        string `help:"SQLite database path." default:"" env:"TAPERTRACK_DB"`
	JWTSecret string `help:"HS256 signing secret for bearer tokens." env:"TAPERTRACK_JWT_SECRET" required:""`
	Verbose   bool   `help:"Log every request." short:"v"`
}

func (c *ServeCmd) Run(ctx *Context) error {
	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()
	if !c.Verbose {
		logger = logger.Level(zerolog.InfoLevel)
	}

	dbPath := c.DB
	if dbPath == "" {
		dbPath = filepath.Join(ctx.DataDir, "tapertrack.db")
	}

	store, err := server.NewStore(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open server store: %w", err)
	}
	defer store.Close()

	srv := server.New(store, []byte(c.JWTSecret), logger)

	logger.Info().Str("addr", c.Addr).Str("db", dbPath).Msg("sync server listening")
	if err := http.ListenAndServe(c.Addr, srv); err != nil {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}
