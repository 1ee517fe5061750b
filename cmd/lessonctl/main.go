package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	"github.com/example/lessonbot/internal/catalog"
	"github.com/example/lessonbot/internal/config"
	"github.com/example/lessonbot/internal/database"
	"github.com/example/lessonbot/internal/excel"
	"github.com/example/lessonbot/internal/logger"
	"github.com/example/lessonbot/internal/stats"
)

// app holds the dependencies shared by every subcommand. It is built in
// the root PersistentPreRunE and torn down in PersistentPostRun, so the
// subcommands only see ready repositories.
type app struct {
	cfg     *config.Config
	log     *logger.Logger
	db      *sqlx.DB
	lessons *database.LessonRepository
	engine  *catalog.Engine
	reports *stats.Service
}

var cli app

var (
	flagDBPath    string
	flagYes       bool
	flagSheet     string
	flagTitleCol  string
	flagContent   string
	flagStartRow  int
	flagTrendDays int
)

var rootCmd = &cobra.Command{
	Use:           "lessonctl",
	Short:         "Manage the lesson catalog from the command line",
	Long:          "lessonctl administers the same lesson catalog the Telegram bot serves: list, add, import and delete lessons, finish interrupted repairs and check progress consistency.",
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setup()
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		teardown()
	},
}

var listCmd = &cobra.Command{
	Use:     "lessons",
	Aliases: []string{"list"},
	Short:   "Print the curriculum in order",
	RunE: func(cmd *cobra.Command, args []string) error {
		lessons, err := cli.lessons.List(cmd.Context())
		if err != nil {
			return err
		}
		if len(lessons) == 0 {
			fmt.Println("The curriculum is empty.")
			return nil
		}
		for _, lesson := range lessons {
			fmt.Printf("%3d. %s\n", lesson.Seq, lesson.Title)
		}
		return nil
	},
}

var addCmd = &cobra.Command{
	Use:   "add <title> [text]",
	Short: "Append a lesson to the end of the curriculum",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		text := ""
		if len(args) == 2 {
			text = args[1]
		}
		payload, err := json.Marshal(map[string]string{"text": text})
		if err != nil {
			return fmt.Errorf("failed to encode lesson content: %w", err)
		}
		lesson, err := cli.lessons.Create(cmd.Context(), args[0], payload)
		if err != nil {
			return err
		}
		fmt.Printf("Created lesson %d %q.\n", lesson.Seq, lesson.Title)
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Load lessons from an Excel or CSV file",
	Long:  "Reads lesson titles and texts from an .xlsx or .csv file and appends the new ones to the curriculum. Rows whose title already exists are skipped, so the same file can be imported twice.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ic := excel.DefaultImportConfig()
		ic.FilePath = args[0]
		ic.SheetName = flagSheet
		ic.TitleColumn = flagTitleCol
		ic.ContentColumn = flagContent
		ic.StartRow = flagStartRow

		result, err := excel.ImportLessons(cmd.Context(), cli.lessons, ic)
		if err != nil {
			return err
		}

		fmt.Printf("Processed %d rows: %d created, %d skipped.\n",
			result.TotalProcessed, result.Created, result.Skipped)
		for _, msg := range result.Errors {
			fmt.Println("  -", msg)
		}
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <number>",
	Short: "Delete a lesson and repair learner progress",
	Long:  "Deletes the lesson with the given number, renumbers the lessons after it and rewrites every progress record that referenced the old numbering.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		seq, err := strconv.Atoi(args[0])
		if err != nil || seq < 1 {
			return fmt.Errorf("invalid lesson number %q", args[0])
		}

		ctx := cmd.Context()
		lesson, err := cli.lessons.GetBySeq(ctx, seq)
		if err != nil {
			if catalog.IsNotFound(err) {
				return fmt.Errorf("lesson %d does not exist", seq)
			}
			return err
		}

		if !flagYes {
			fmt.Printf("Would delete lesson %d %q and repair learner progress.\n", lesson.Seq, lesson.Title)
			fmt.Println("Re-run with --yes to confirm.")
			return nil
		}

		result, err := cli.engine.DeleteLesson(ctx, lesson.ID)
		if err != nil {
			var pf *catalog.PartialFailureError
			if errors.As(err, &pf) {
				return fmt.Errorf("lesson %d %q is deleted but only %d progress writes committed; run \"lessonctl repair\" to finish",
					pf.Seq, pf.Title, pf.Written)
			}
			return err
		}

		fmt.Printf("Deleted lesson %d %q, repaired %d progress records.\n",
			result.Lesson.Seq, result.Lesson.Title, result.Affected)
		return nil
	},
}

var repairCmd = &cobra.Command{
	Use:   "repair",
	Short: "Finish repairs interrupted by a failed deletion",
	RunE: func(cmd *cobra.Command, args []string) error {
		closed, err := cli.engine.RunPendingRepairs(cmd.Context())
		if err != nil {
			return err
		}
		if closed == 0 {
			fmt.Println("No pending repairs.")
			return nil
		}
		fmt.Printf("Closed %d pending repairs.\n", closed)
		return nil
	},
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Check the catalog and progress records for inconsistencies",
	RunE: func(cmd *cobra.Command, args []string) error {
		report, err := cli.engine.VerifyIntegrity(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Println(report.Summary())
		if report.Clean() {
			return nil
		}

		for _, owner := range sortedOwners(report.DanglingRefs) {
			fmt.Printf("  learner %d completed missing lessons %v\n", owner, report.DanglingRefs[owner])
		}
		for _, owner := range sortedPositionOwners(report.BadPositions) {
			fmt.Printf("  learner %d is at invalid position %d\n", owner, report.BadPositions[owner])
		}
		if len(report.SequenceGaps) > 0 {
			fmt.Printf("  lesson numbering has gaps at %v\n", report.SequenceGaps)
		}
		return errors.New("catalog needs repair")
	},
}

var reportCmd = &cobra.Command{
	Use:     "stats",
	Aliases: []string{"report"},
	Short:   "Print completion rates, top learners and the signup trend",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		rates, err := cli.reports.CompletionRates(ctx)
		if err != nil {
			return err
		}
		fmt.Println("Completion by lesson:")
		if len(rates) == 0 {
			fmt.Println("  no lessons yet")
		}
		for _, rate := range rates {
			fmt.Printf("  %3d. %s — %d learners (%.0f%%)\n", rate.Seq, rate.Title, rate.Completed, rate.Rate*100)
		}

		top, err := cli.reports.Leaderboard(ctx, 10)
		if err != nil {
			return err
		}
		fmt.Println("Top learners:")
		if len(top) == 0 {
			fmt.Println("  no learners yet")
		}
		for _, entry := range top {
			fmt.Printf("  %2d. %s — %d lessons done, at lesson %d\n", entry.Rank, entry.Name, entry.Completed, entry.Position)
		}

		trend, err := cli.reports.RegistrationTrend(ctx, flagTrendDays)
		if err != nil {
			return err
		}
		fmt.Printf("Signups over the last %d days:\n", flagTrendDays)
		if len(trend) == 0 {
			fmt.Println("  none")
		}
		for _, point := range trend {
			fmt.Printf("  %s  %d\n", point.Date, point.Count)
		}
		return nil
	},
}

func setup() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if flagDBPath != "" {
		cfg.DBType = config.DriverSQLite
		cfg.DBPath = flagDBPath
	}

	zl, err := logger.New(cfg.LogMode)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}

	db, err := database.Connect(cfg.DBType, cfg.DSN())
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := database.InitSchema(db); err != nil {
		db.Close()
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	lessonRepo := database.NewLessonRepository(db)
	progressRepo := database.NewProgressRepository(db, cfg.ProgressBatchSize)
	userRepo := database.NewUserRepository(db)
	repairRepo := database.NewRepairRepository(db)

	cli = app{
		cfg:     cfg,
		log:     zl,
		db:      db,
		lessons: lessonRepo,
		engine:  catalog.NewEngine(lessonRepo, progressRepo, repairRepo, zl.With("component", "catalog")),
		reports: stats.NewService(lessonRepo, progressRepo, userRepo, zl.With("component", "stats")),
	}
	return nil
}

func teardown() {
	if cli.db != nil {
		cli.db.Close()
	}
	if cli.log != nil {
		cli.log.Sync()
	}
}

func sortedOwners(refs map[int64][]int) []int64 {
	owners := make([]int64, 0, len(refs))
	for owner := range refs {
		owners = append(owners, owner)
	}
	sort.Slice(owners, func(i, j int) bool { return owners[i] < owners[j] })
	return owners
}

func sortedPositionOwners(positions map[int64]int) []int64 {
	owners := make([]int64, 0, len(positions))
	for owner := range positions {
		owners = append(owners, owner)
	}
	sort.Slice(owners, func(i, j int) bool { return owners[i] < owners[j] })
	return owners
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagDBPath, "db", "", "path to the SQLite database file (overrides DB_PATH)")

	deleteCmd.Flags().BoolVar(&flagYes, "yes", false, "delete without asking for confirmation")

	defaults := excel.DefaultImportConfig()
	importCmd.Flags().StringVar(&flagSheet, "sheet", defaults.SheetName, "sheet to read in an Excel file")
	importCmd.Flags().StringVar(&flagTitleCol, "title-column", defaults.TitleColumn, "column holding the lesson title")
	importCmd.Flags().StringVar(&flagContent, "content-column", defaults.ContentColumn, "column holding the lesson text")
	importCmd.Flags().IntVar(&flagStartRow, "start-row", defaults.StartRow, "first row to import, 1-based")

	reportCmd.Flags().IntVar(&flagTrendDays, "days", 14, "how many days of signups to show")

	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(repairCmd)
	rootCmd.AddCommand(auditCmd)
	rootCmd.AddCommand(reportCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
