package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/stemsi/quizengine/internal/config"
	"github.com/stemsi/quizengine/internal/database"
	"github.com/stemsi/quizengine/internal/engine/processing"
	"github.com/stemsi/quizengine/internal/engine/template"
	"github.com/stemsi/quizengine/internal/logger"
	"github.com/stemsi/quizengine/internal/model"
	"github.com/stemsi/quizengine/internal/repository"
	"github.com/stemsi/quizengine/internal/service"
)

func main() {
	var file string
	flag.StringVar(&file, "file", "", "JSON array of questions to load instead of the built-in samples")
	flag.Parse()

	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	questions := sampleQuestions()
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			log.Fatal().Err(err).Str("file", file).Msg("Failed to read seed file")
		}
		questions = nil
		if err := json.Unmarshal(data, &questions); err != nil {
			log.Fatal().Err(err).Str("file", file).Msg("Failed to decode seed file")
		}
	}

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	proc := processing.New(processing.WithTemplateEngine(template.New(template.WithMaxExpressionLength(cfg.MaxExpressionLength))))
	questionService := service.NewQuestionService(repository.NewQuestionRepository(pool, rdb, log), proc, log)

	fmt.Printf("=== Seeding %d Questions ===\n", len(questions))

	successCount := 0
	for i := range questions {
		q := &questions[i]
		if err := questionService.Create(ctx, q); err != nil {
			fmt.Printf("Error creating question %d (%s): %v\n", i+1, q.Type, err)
			continue
		}
		successCount++
		fmt.Printf("Created %s %s\n", q.Type, q.ID)
	}

	fmt.Printf("\nSeed completed! Successfully added %d/%d questions.\n", successCount, len(questions))
}

func sampleQuestions() []model.Question {
	tolerance := 0.5
	return []model.Question{
		{
			Type:   model.QuestionTypeSelectOneInLot,
			Text:   "Which of these numbers is prime?",
			Points: 5,
			Solution: model.Solution{
				CorrectLotItem:    &model.LotItem{Text: "13", Explanation: "13 has no divisors other than 1 and itself."},
				IncorrectLotItems: []model.LotItem{{Text: "21"}, {Text: "27"}, {Text: "49"}},
			},
		},
		{
			Type:   model.QuestionTypeSelectManyInLot,
			Text:   "Select every even number.",
			Points: 6,
			Solution: model.Solution{
				CorrectLotItems:   []model.LotItem{{Text: "4"}, {Text: "10"}},
				IncorrectLotItems: []model.LotItem{{Text: "7"}, {Text: "15"}},
			},
		},
		{
			Type:   model.QuestionTypeOrderTheLots,
			Text:   "Order the planets by distance from the sun.",
			Points: 9,
			Solution: model.Solution{
				Ordering: []model.LotOrder{
					{LotItem: model.LotItem{Text: "Mercury"}, Order: 1},
					{LotItem: model.LotItem{Text: "Venus"}, Order: 2},
					{LotItem: model.LotItem{Text: "Earth"}, Order: 3},
				},
			},
		},
		{
			Type:            model.QuestionTypeNumericAnswer,
			Text:            "A rectangle is <QParam>w</QParam> cm wide and <QParam>h</QParam> cm tall. What is its area in cm²?",
			IsParameterized: true,
			Parameters: []model.Parameter{
				{Name: "w", PossibleValues: []any{3.0, 4.0, 5.0}, Type: model.SemanticTypeNumber},
				{Name: "h", PossibleValues: []any{2.5, 6.0}, Type: model.SemanticTypeNumber},
			},
			Points: 10,
			Solution: model.Solution{
				Expression:       "w * h",
				DecimalPrecision: 1,
				LowerLimit:       tolerance,
				UpperLimit:       tolerance,
			},
		},
		{
			Type:     model.QuestionTypeDescriptive,
			Text:     "Explain why the sky appears blue during the day.",
			Points:   10,
			Solution: model.Solution{SolutionText: "Shorter wavelengths scatter more strongly in the atmosphere (Rayleigh scattering)."},
		},
	}
}
