// Command qcheck lints question documents offline and optionally renders and
// grades them.
//
//	qcheck [-render] [-answer '{"lot_item_id":"A"}'] [-seed s] file.json...
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/stemsi/quizengine/internal/engine/params"
	"github.com/stemsi/quizengine/internal/engine/processing"
	"github.com/stemsi/quizengine/internal/engine/template"
	"github.com/stemsi/quizengine/internal/logger"
	"github.com/stemsi/quizengine/internal/model"
	"golang.org/x/term"
)

func main() {
	var (
		render    bool
		answerRaw string
		seed      string
		partial   bool
		maxExpr   int
		logLevel  string
	)
	flag.BoolVar(&render, "render", false, "Print the rendered student view")
	flag.StringVar(&answerRaw, "answer", "", "Grade this answer JSON against every question")
	flag.StringVar(&seed, "seed", "", "Derive parameter maps from this seed for reproducible output")
	flag.BoolVar(&partial, "partial", false, "Grade with partial credit enabled")
	flag.IntVar(&maxExpr, "max-expression-length", 256, "Upper bound on expression source length")
	flag.StringVar(&logLevel, "log-level", "warn", "Log level")
	flag.Parse()

	pretty := term.IsTerminal(int(os.Stdout.Fd()))
	format := "json"
	if term.IsTerminal(int(os.Stderr.Fd())) {
		format = "pretty"
	}
	log := logger.Component(logger.New(os.Stderr, logLevel, format), "qcheck")

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "Usage: qcheck [flags] file.json...")
		flag.PrintDefaults()
		os.Exit(2)
	}

	opts := options{render: render, settings: model.QuizSettings{AllowPartialGrading: partial}}
	if answerRaw != "" {
		var ans model.Answer
		if err := json.Unmarshal([]byte(answerRaw), &ans); err != nil {
			log.Fatal().Err(err).Msg("Invalid -answer JSON")
		}
		opts.answer = &ans
	}

	gen := params.NewRandomGenerator()
	if seed != "" {
		gen = params.NewSeededGenerator(seed)
	}
	proc := processing.New(
		processing.WithGenerator(gen),
		processing.WithTemplateEngine(template.New(template.WithMaxExpressionLength(maxExpr))),
		processing.WithLogger(log),
	)

	enc := json.NewEncoder(os.Stdout)
	if pretty {
		enc.SetIndent("", "  ")
	}

	failed := 0
	for _, path := range flag.Args() {
		data, err := os.ReadFile(path)
		if err != nil {
			log.Error().Err(err).Str("file", path).Msg("Read failed")
			failed++
			continue
		}
		questions, err := decodeQuestions(data)
		if err != nil {
			log.Error().Err(err).Str("file", path).Msg("Decode failed")
			failed++
			continue
		}
		for i, q := range questions {
			r := check(proc, path, i, q, opts)
			if r.Error != "" {
				failed++
			}
			if err := enc.Encode(r); err != nil {
				log.Fatal().Err(err).Msg("Write report failed")
			}
		}
	}

	if failed > 0 {
		log.Warn().Int("failed", failed).Msg("Some questions did not pass")
		os.Exit(1)
	}
}
