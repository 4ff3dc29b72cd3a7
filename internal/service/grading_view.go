package service

import (
	"github.com/stemsi/quizengine/internal/model"
)

// Aggregate derives the overall status of an attempt. Any answer awaiting
// manual review keeps the whole attempt PENDING. A quiz worth nothing passes.
func Aggregate(feedback []model.Feedback, total, maxScore, threshold float64) model.GradingStatus {
	for _, fb := range feedback {
		if fb.Status == model.FeedbackPending {
			return model.GradingPending
		}
	}
	if maxScore <= 0 || total/maxScore >= threshold {
		return model.GradingPassed
	}
	return model.GradingFailed
}

// BuildGradingResultView hides what the quiz does not reveal after
// submission. Scores and the overall status need ShowScoreAfterSubmission;
// the per-question list needs either of the answer or explanation flags, and
// feedback texts only appear with explanations.
func BuildGradingResultView(res *model.GradingResult, s model.QuizSettings) *model.GradingResultView {
	view := &model.GradingResultView{
		AttemptID: res.AttemptID,
		GradedAt:  res.GradedAt,
	}
	if s.ShowScoreAfterSubmission {
		total, maxScore := res.TotalScore, res.TotalMaxScore
		view.TotalScore = &total
		view.TotalMaxScore = &maxScore
		view.GradingStatus = res.GradingStatus
	}
	if s.ShowCorrectAnswersAfterSubmission || s.ShowExplanationAfterSubmission {
		view.OverallFeedback = make([]model.FeedbackView, 0, len(res.OverallFeedback))
		for _, fb := range res.OverallFeedback {
			fv := model.FeedbackView{QuestionID: fb.QuestionID, Status: fb.Status}
			if s.ShowScoreAfterSubmission {
				score := fb.Score
				fv.Score = &score
			}
			if s.ShowExplanationAfterSubmission {
				fv.FeedbackText = fb.FeedbackText
			}
			view.OverallFeedback = append(view.OverallFeedback, fv)
		}
	}
	return view
}
