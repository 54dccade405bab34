package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"chara-match/internal/adapter/catalog"
	"chara-match/internal/adapter/genai"
	"chara-match/internal/collector"
	"chara-match/internal/domain"
	"chara-match/internal/npy"
)

var (
	version = "dev"

	// Global flags
	verbose bool

	// Scrape command flags
	scrapeBaseURL string
	scrapeOut     string
	namesFile     string

	// Embed command flags
	embedIn      string
	vectorsOut   string
	catalogOut   string
	embedModel   string
	embedTimeout int
	concurrency  int

	// Inspect command flags
	dataFile       string
	embeddingsFile string
)

// defaultCharacterNames is the built-in scrape list. Entries match the
// wiki's canonical page titles, mixed scripts and disambiguation
// suffixes included.
var defaultCharacterNames = []string{
	"五條悟", "竈門炭治郎", "雷姆(Re:从零开始的异世界生活)", "黑川茜", "芙莉蓮", "阿尼亚·福杰", "猫猫(药师少女的独语)#",
	"有马加奈", "艾莉莎·米哈伊罗芙娜·九条", "电次(电锯人)#", "早川秋", "魯迪烏斯", "菜月昴", "蒙奇·D·路飞",
	"漩渦鳴人", "孙悟空(龙珠)#", "江戶川柯南", "坂田銀時", "利威尔·阿克曼", "魯路修·蘭佩洛基",
	"阿尔托莉雅·潘德拉贡", "綾波麗", "赤井秀一", "毛利蘭", "赫蘿", "白銀御行", "四宮輝夜",
	"雪之下雪乃", "加藤惠(路人女主的养成方法)#", "鹿野千夏", "司波深雪", "千石撫子", "椎名真白", "夏目貴志",
	"月野兔", "澤村·史賓瑟·英梨梨", "湊阿庫婭", "金木研", "木之本櫻", "宇智波佐助",
	"兵藤一誠", "阿良良木曆", "三笠·阿克曼", "約兒·佛傑", "千反田愛瑠",
	"和泉紗霧", "桐谷和人", "亞絲娜", "立華奏", "菲倫",
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "charactl",
	Short:   "Build and inspect the character catalog",
	Version: version,
}

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Scrape moe traits from the wiki",
	Long: `Scrape the character list from the wiki and write the catalog JSON.

Characters whose page has no recognizable trait infobox are kept with an
empty trait list. Interrupting with Ctrl-C saves the profiles collected
so far, so the output always reflects completed characters.

Examples:
  # Scrape the built-in character list
  charactl scrape

  # Scrape a custom list, one name per line
  charactl scrape --names-file my_characters.txt

  # Point at a mirror
  charactl scrape --base-url https://mirror.example.com`,
	RunE: runScrape,
}

var embedCmd = &cobra.Command{
	Use:   "embed",
	Short: "Embed catalog entries with Ollama",
	Long: `Embed every catalog entry and write the embedding matrix alongside a
copy of the catalog with positional ids.

Each record is rendered as "角色: <name>。萌點描述: <traits>。" before
embedding. Disambiguation suffixes like "(Re:...)" or a trailing "#"
are cut from the name first so they do not pollute the vector.

Examples:
  # Embed against a local Ollama (set OLLAMA_BASE_URL to override)
  charactl embed

  # Raise parallelism against a beefier Ollama
  charactl embed --concurrency 8`,
	RunE: runEmbed,
}

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Validate and summarize catalog files",
	RunE:  showCatalog,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")

	scrapeCmd.Flags().StringVar(&scrapeBaseURL, "base-url", "https://zh.moegirl.org.cn", "wiki base URL")
	scrapeCmd.Flags().StringVar(&scrapeOut, "out", "character_database.json", "catalog JSON output path")
	scrapeCmd.Flags().StringVar(&namesFile, "names-file", "", "file with one character name per line (defaults to the built-in list)")

	embedCmd.Flags().StringVar(&embedIn, "in", "character_database.json", "catalog JSON input path")
	embedCmd.Flags().StringVar(&vectorsOut, "vectors", "character_embeddings_ollama.npy", "embedding matrix output path")
	embedCmd.Flags().StringVar(&catalogOut, "catalog", "character_data_with_id.json", "catalog-with-ids output path")
	embedCmd.Flags().StringVar(&embedModel, "model", "bge-m3", "Ollama embedding model")
	embedCmd.Flags().IntVar(&embedTimeout, "timeout", 30, "per-call timeout in seconds")
	embedCmd.Flags().IntVar(&concurrency, "concurrency", 4, "number of concurrent embed calls")

	inspectCmd.Flags().StringVar(&dataFile, "data", "character_data_with_id.json", "catalog JSON path")
	inspectCmd.Flags().StringVar(&embeddingsFile, "embeddings", "character_embeddings_ollama.npy", "embedding matrix path")

	rootCmd.AddCommand(scrapeCmd)
	rootCmd.AddCommand(embedCmd)
	rootCmd.AddCommand(inspectCmd)
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}
	handler := slog.NewJSONHandler(os.Stdout, opts)
	return slog.New(handler)
}

func runScrape(cmd *cobra.Command, args []string) error {
	logger := newLogger()

	names := defaultCharacterNames
	if namesFile != "" {
		loaded, err := readNamesFile(namesFile)
		if err != nil {
			return fmt.Errorf("read names file: %w", err)
		}
		if len(loaded) == 0 {
			return fmt.Errorf("names file %s contains no names", namesFile)
		}
		names = loaded
	}

	// Setup context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received signal, shutting down...", slog.String("signal", sig.String()))
		cancel()
	}()

	logger.Info("starting scrape",
		slog.String("base_url", scrapeBaseURL),
		slog.Int("characters", len(names)),
		slog.String("out", scrapeOut),
	)

	col := collector.NewCollector(scrapeBaseURL, logger)
	profiles, err := col.Collect(ctx, names)
	if len(profiles) > 0 {
		if werr := writeJSON(scrapeOut, profiles); werr != nil {
			return fmt.Errorf("write catalog: %w", werr)
		}
	}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info("scrape interrupted, partial catalog saved",
				slog.Int("collected", len(profiles)))
			return nil
		}
		return fmt.Errorf("scrape: %w", err)
	}

	logger.Info("catalog written",
		slog.String("out", scrapeOut),
		slog.Int("characters", len(profiles)),
	)
	return nil
}

func runEmbed(cmd *cobra.Command, args []string) error {
	logger := newLogger()

	ollamaURL := os.Getenv("OLLAMA_BASE_URL")
	if ollamaURL == "" {
		ollamaURL = "http://localhost:11434"
	}

	profiles, err := readProfiles(embedIn)
	if err != nil {
		return fmt.Errorf("read catalog: %w", err)
	}
	if len(profiles) == 0 {
		return fmt.Errorf("catalog %s contains no characters", embedIn)
	}

	// Setup context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received signal, shutting down...", slog.String("signal", sig.String()))
		cancel()
	}()

	logger.Info("starting embedding",
		slog.String("ollama_url", ollamaURL),
		slog.String("model", embedModel),
		slog.Int("characters", len(profiles)),
		slog.Int("concurrency", concurrency),
	)

	embedder := genai.NewOllamaEmbedder(ollamaURL, embedModel, time.Duration(embedTimeout)*time.Second, logger)

	// One call per record keeps a single slow page from failing the
	// whole batch; errgroup bounds the parallelism.
	vectors := make([][]float32, len(profiles))
	var done atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, p := range profiles {
		g.Go(func() error {
			vecs, err := embedder.Encode(gctx, []string{embeddingText(p)})
			if err != nil {
				return fmt.Errorf("embed %q: %w", p.Name, err)
			}
			vectors[i] = vecs[0]
			if n := done.Add(1); n%10 == 0 || n == int64(len(profiles)) {
				logger.Info("embedding progress",
					slog.Int64("done", n),
					slog.Int("total", len(profiles)))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info("embedding interrupted, nothing written")
			return nil
		}
		return fmt.Errorf("embed catalog: %w", err)
	}

	records := make([]domain.CharacterRecord, len(profiles))
	for i, p := range profiles {
		records[i] = domain.CharacterRecord{
			ID:         i,
			Name:       p.Name,
			MoeTraits:  p.MoeTraits,
			TraitCount: p.TraitCount,
		}
	}

	if err := npy.WriteFile(vectorsOut, vectors); err != nil {
		return fmt.Errorf("write embeddings: %w", err)
	}
	if err := writeJSON(catalogOut, records); err != nil {
		return fmt.Errorf("write catalog: %w", err)
	}

	logger.Info("embedding completed",
		slog.Int("characters", len(records)),
		slog.Int("dimension", len(vectors[0])),
		slog.String("vectors", vectorsOut),
		slog.String("catalog", catalogOut),
	)
	return nil
}

func showCatalog(cmd *cobra.Command, args []string) error {
	logger := newLogger()

	source := catalog.NewFileSource(dataFile, embeddingsFile, logger)
	cat, err := source.Load(context.Background())
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}

	fmt.Printf("Catalog Status:\n")
	fmt.Printf("  Characters: %d\n", cat.Len())
	fmt.Printf("  Dimension:  %d\n", cat.Dimension())
	fmt.Println()
	for _, r := range cat.Records {
		fmt.Printf("  %4d  %s (%d traits)\n", r.ID, r.Name, r.TraitCount)
	}

	return nil
}

// embeddingText renders one catalog entry for embedding: name first,
// traits after. The name is cut at the first "(" or "#" so
// disambiguation suffixes stay out of the vector.
func embeddingText(p collector.CharacterProfile) string {
	name := p.Name
	if i := strings.IndexAny(name, "(#"); i >= 0 {
		name = name[:i]
	}
	name = strings.TrimSpace(name)
	return fmt.Sprintf("角色: %s。萌點描述: %s。", name, strings.Join(p.MoeTraits, ", "))
}

func readNamesFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	var names []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		name := strings.TrimSpace(sc.Text())
		if name == "" {
			continue
		}
		names = append(names, name)
	}
	return names, sc.Err()
}

func readProfiles(path string) ([]collector.CharacterProfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var profiles []collector.CharacterProfile
	if err := json.Unmarshal(data, &profiles); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return profiles, nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}
