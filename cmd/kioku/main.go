package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/hikarw/kioku/internal/config"
	"github.com/hikarw/kioku/internal/domain/entities"
	"github.com/hikarw/kioku/internal/infra/postgres"
	"github.com/hikarw/kioku/internal/infra/postgres/repository"
	"github.com/hikarw/kioku/internal/infra/sqlite"
	"github.com/hikarw/kioku/internal/logger"
	"github.com/hikarw/kioku/internal/service"
	"github.com/hikarw/kioku/internal/srs"
)

const usage = `usage: kioku [flags] <command>

commands:
  migrate    create or update the database schema
  add        queue an item for study (requires --item and --type)
  due        list due reviews as JSON
  count      print the number of due reviews
  rate       grade a flashcard answer (requires --review and --rating)
  quiz       generate a multiple-choice question (requires --item and --type)
  answer     grade a quiz answer (requires --review, --option and --correct)
  stats      print mastery and retention statistics as JSON
`

type stores struct {
	reviews service.ReviewStore
	quizzes service.ReviewStore
	items   service.ItemStore
	stats   service.StatsStore
	close   func()
}

func main() {
	// Local development keeps DATABASE_URL in a .env file.
	_ = godotenv.Load()

	var (
		itemID    = pflag.Int64("item", 0, "dictionary item id")
		itemType  = pflag.String("type", "", "item type: vocab or kanji")
		reviewID  = pflag.Int64("review", 0, "review id")
		rating    = pflag.Int("rating", 0, "flashcard rating: 1 again, 2 hard, 3 good, 4 easy")
		option    = pflag.Int("option", -1, "selected quiz option, 0-3")
		correct   = pflag.Bool("correct", false, "whether the selected quiz option was correct")
		mode      = pflag.String("mode", string(entities.ModeWordToMeaning), "question mode")
		language  = pflag.String("language", "", "meaning language, defaults to the configured one")
		jlptLevel = pflag.Int("level", 0, "restrict to a JLPT level, 1-5")
		limit     = pflag.Int("limit", 20, "maximum rows to return")
		duration  = pflag.Int("duration", 0, "answer duration in milliseconds")
	)
	pflag.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		pflag.PrintDefaults()
	}
	pflag.Parse()

	if pflag.NArg() != 1 {
		pflag.Usage()
		os.Exit(2)
	}
	command := pflag.Arg(0)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	zlog, err := logger.New(cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = zlog.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg, command == "migrate")
	if err != nil {
		zlog.Fatal("failed to open storage", zap.Error(err))
	}
	defer st.close()

	machine, err := newStateMachine(cfg.SRS)
	if err != nil {
		zlog.Fatal("invalid scheduler configuration", zap.Error(err))
	}

	reviews := service.NewReviewService(st.reviews, st.items, machine, zlog)
	quizzes := service.NewMCQService(st.quizzes, st.items, machine, zlog)
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	generator := service.NewMCQGenerator(st.items, entities.Language(cfg.DefaultLanguage), rng, zlog)
	statistics := service.NewStatisticsService(st.stats, zlog)

	filter := entities.ReviewFilter{Limit: *limit}
	if *itemType != "" {
		t := entities.ItemType(*itemType)
		filter.ItemType = &t
	}
	if *jlptLevel != 0 {
		filter.JLPTLevel = jlptLevel
	}
	var durationMs *int
	if *duration > 0 {
		durationMs = duration
	}

	switch command {
	case "migrate":
		// Schema creation already ran inside openStores.
		fmt.Println("schema is up to date")

	case "add":
		id, err := reviews.Create(ctx, *itemID, entities.ItemType(*itemType))
		if err != nil {
			zlog.Fatal("failed to queue item", zap.Error(err))
		}
		quizID, err := quizzes.Create(ctx, *itemID, entities.ItemType(*itemType))
		if err != nil {
			zlog.Fatal("failed to queue item for quizzes", zap.Error(err))
		}
		fmt.Printf("queued: flashcard review %d, quiz review %d\n", id, quizID)

	case "due":
		rows, err := reviews.GetDue(ctx, filter)
		if err != nil {
			zlog.Fatal("failed to list due reviews", zap.Error(err))
		}
		printJSON(rows)

	case "count":
		n, err := reviews.Count(ctx, filter)
		if err != nil {
			zlog.Fatal("failed to count due reviews", zap.Error(err))
		}
		fmt.Println(n)

	case "rate":
		review, err := reviews.Process(ctx, *reviewID, srs.Rating(*rating), durationMs)
		if err != nil {
			zlog.Fatal("failed to grade flashcard", zap.Error(err))
		}
		printJSON(review)

	case "quiz":
		question, err := generator.Generate(ctx, *itemID, entities.ItemType(*itemType),
			entities.QuestionMode(*mode), entities.Language(*language))
		if err != nil {
			zlog.Fatal("failed to generate question", zap.Error(err))
		}
		printJSON(question)

	case "answer":
		review, err := quizzes.Process(ctx, *reviewID, *option, *correct, durationMs)
		if err != nil {
			zlog.Fatal("failed to grade quiz answer", zap.Error(err))
		}
		printJSON(review)

	case "stats":
		printStats(ctx, zlog, statistics, filter)

	default:
		pflag.Usage()
		os.Exit(2)
	}
}

// openStores selects and initializes the configured backend. The sqlite
// driver always applies the schema on open; postgres does so only for the
// migrate command.
func openStores(ctx context.Context, cfg *config.Config, migrate bool) (*stores, error) {
	switch cfg.Storage.Driver {
	case "sqlite":
		db, err := sqlite.Open(cfg.Storage.SQLitePath)
		if err != nil {
			return nil, err
		}
		return &stores{
			reviews: db.ReviewStore(),
			quizzes: db.MCQReviewStore(),
			items:   db.ItemStore(),
			stats:   db.StatsStore(),
			close:   func() { _ = db.Close() },
		}, nil

	case "postgres":
		dsn, err := cfg.Storage.DSN()
		if err != nil {
			return nil, err
		}
		pool, err := postgres.NewPool(ctx, dsn, postgres.PoolConfig{
			MaxConns:        int32(cfg.Storage.MaxConnections),
			MaxConnLifetime: cfg.Storage.MaxConnLifetime,
		})
		if err != nil {
			return nil, err
		}
		if migrate {
			if err := postgres.Migrate(ctx, pool); err != nil {
				pool.Close()
				return nil, err
			}
		}
		return &stores{
			reviews: repository.NewReviewRepository(pool),
			quizzes: repository.NewMCQReviewRepository(pool),
			items:   repository.NewItemRepository(pool),
			stats:   repository.NewStatsRepository(pool),
			close:   pool.Close,
		}, nil

	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

func newStateMachine(cfg config.SRS) (*srs.StateMachine, error) {
	learning, err := cfg.LearningDurations()
	if err != nil {
		return nil, err
	}
	relearning, err := cfg.RelearningDurations()
	if err != nil {
		return nil, err
	}
	return srs.NewStateMachine(srs.Config{
		DesiredRetention: cfg.DesiredRetention,
		LearningSteps:    learning,
		RelearningSteps:  relearning,
		MaximumInterval:  cfg.MaximumIntervalDays,
		EnableFuzzing:    cfg.EnableFuzzing,
	})
}

func printStats(ctx context.Context, zlog *zap.Logger, s *service.StatisticsService, filter entities.ReviewFilter) {
	mastery, err := s.Mastery(ctx, filter.ItemType, filter.JLPTLevel)
	if err != nil {
		zlog.Fatal("failed to compute mastery", zap.Error(err))
	}
	retention, err := s.RetentionRate(ctx, nil, nil)
	if err != nil {
		zlog.Fatal("failed to compute retention", zap.Error(err))
	}
	average, err := s.AverageDuration(ctx, nil, nil)
	if err != nil {
		zlog.Fatal("failed to compute average duration", zap.Error(err))
	}
	top, err := s.MostReviewed(ctx, filter.Limit, filter.ItemType)
	if err != nil {
		zlog.Fatal("failed to list most reviewed items", zap.Error(err))
	}

	printJSON(map[string]any{
		"mastery":              mastery,
		"retention_rate":       retention,
		"average_duration_sec": average,
		"most_reviewed":        top,
	})
}

func printJSON(v any) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(string(out))
}
