// Command mockforge es la CLI de operación: cifrado de secretos,
// migraciones de esquema y estado de la cola offline.
package main

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/mockforge/mockforge/internal/config"
	"github.com/mockforge/mockforge/internal/security/secretbox"
	migrations "github.com/mockforge/mockforge/migrations/postgres"
)

func main() {
	_ = godotenv.Load(".env")

	root := &cobra.Command{
		Use:           "mockforge",
		Short:         "Herramientas de operación del servicio de integraciones",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(encCmd(), migrateCmd(), queueCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// ---------------------------------------------------------------------------
// enc: cifrar/descifrar valores con la master key del servicio
// ---------------------------------------------------------------------------

func encCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "enc",
		Short: "Cifra o descifra valores con TOKEN_ENCRYPTION_KEY",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "encrypt <plaintext>",
			Short: "Cifra un valor",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				out, err := secretbox.Encrypt(args[0])
				if err != nil {
					return err
				}
				fmt.Println(out)
				return nil
			},
		},
		&cobra.Command{
			Use:   "decrypt <ciphertext>",
			Short: "Descifra un valor",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				out, err := secretbox.Decrypt(args[0])
				if err != nil {
					return err
				}
				fmt.Println(out)
				return nil
			},
		},
	)
	return cmd
}

// ---------------------------------------------------------------------------
// migrate: aplicar *_up.sql / *_down.sql contra postgres
// ---------------------------------------------------------------------------

func migrateCmd() *cobra.Command {
	var (
		configPath string
		dir        string
	)
	cmd := &cobra.Command{
		Use:   "migrate <up|down> [steps]",
		Short: "Aplica migraciones de esquema",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			action := strings.ToLower(args[0])
			steps := 0
			if len(args) == 2 {
				n, err := strconv.Atoi(args[1])
				if err != nil || n <= 0 {
					return fmt.Errorf("steps inválido: %q", args[1])
				}
				steps = n
			}

			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("config load: %w", err)
			}
			if cfg.Storage.DSN == "" {
				return fmt.Errorf("storage.dsn / DATABASE_DSN requerido")
			}

			ctx := cmd.Context()
			pool, err := pgxpool.New(ctx, cfg.Storage.DSN)
			if err != nil {
				return fmt.Errorf("pgxpool: %w", err)
			}
			defer pool.Close()

			// Por defecto se usan las migraciones embebidas en el binario;
			// --dir permite correr SQL de un checkout local.
			var fsys fs.FS = migrations.FS
			if dir != "" {
				fsys = os.DirFS(dir)
			}

			switch action {
			case "up":
				return runMigrations(ctx, pool, fsys, "_up.sql", steps, false)
			case "down":
				return runMigrations(ctx, pool, fsys, "_down.sql", steps, true)
			default:
				return fmt.Errorf("acción desconocida %q (up | down [steps])", action)
			}
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "ruta a config.yaml (default: solo env)")
	cmd.Flags().StringVar(&dir, "dir", "", "directorio con *_up.sql y *_down.sql (default: embebidas)")
	return cmd
}

func runMigrations(ctx context.Context, pool *pgxpool.Pool, fsys fs.FS, suffix string, steps int, reverse bool) error {
	files, err := listSQL(fsys, suffix)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		fmt.Printf("sin migraciones %s\n", suffix)
		return nil
	}
	sort.Strings(files)
	if reverse {
		for i, j := 0, len(files)-1; i < j; i, j = i+1, j-1 {
			files[i], files[j] = files[j], files[i]
		}
	}
	if steps > 0 && steps < len(files) {
		files = files[:steps]
	}

	for _, f := range files {
		b, err := fs.ReadFile(fsys, f)
		if err != nil {
			return fmt.Errorf("read %s: %w", f, err)
		}
		start := time.Now()
		if _, err := pool.Exec(ctx, string(b)); err != nil {
			return fmt.Errorf("exec %s: %w", f, err)
		}
		fmt.Printf("OK %s (%s)\n", f, time.Since(start).Truncate(time.Millisecond))
	}
	return nil
}

func listSQL(fsys fs.FS, suffix string) ([]string, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.Type().IsRegular() && strings.HasSuffix(strings.ToLower(e.Name()), suffix) {
			out = append(out, e.Name())
		}
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// queue: estado de la cola offline en asynq
// ---------------------------------------------------------------------------

func queueCmd() *cobra.Command {
	var redisAddr string
	cmd := &cobra.Command{
		Use:   "queue stats",
		Short: "Muestra el estado de la cola offline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if args[0] != "stats" {
				return fmt.Errorf("subcomando desconocido %q", args[0])
			}
			if redisAddr == "" {
				redisAddr = strings.TrimSpace(os.Getenv("QUEUE_REDIS_ADDR"))
			}
			if redisAddr == "" {
				return fmt.Errorf("falta --redis o QUEUE_REDIS_ADDR")
			}

			inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: redisAddr})
			defer inspector.Close()

			for _, q := range []string{"offline", "default"} {
				info, err := inspector.GetQueueInfo(q)
				if err != nil {
					fmt.Printf("%-10s (sin datos: %v)\n", q, err)
					continue
				}
				fmt.Printf("%-10s pending=%d active=%d retry=%d dead=%d\n",
					q, info.Pending, info.Active, info.Retry, info.Archived)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&redisAddr, "redis", "", "dirección de redis (default: QUEUE_REDIS_ADDR)")
	return cmd
}
