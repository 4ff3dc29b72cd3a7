package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// ParameterMapKey returns the cache key for the map a question was rendered with in an attempt
func (r *CacheKeyStruct) ParameterMapKey(attemptID, questionID string) string {
	return fmt.Sprintf("attempt:%s:question:%s:params", attemptID, questionID)
}

// RawQuestionKey returns the cache key for a raw question document
func (r *CacheKeyStruct) RawQuestionKey(questionID string) string {
	return fmt.Sprintf("question:%s:raw", questionID)
}

// GradingResultKey returns the cache key for an attempt's latest grading result
func (r *CacheKeyStruct) GradingResultKey(attemptID string) string {
	return fmt.Sprintf("attempt:%s:result", attemptID)
}

// AttemptFeedbackChannel returns the Redis PubSub channel carrying an attempt's grading results
func (r *CacheKeyStruct) AttemptFeedbackChannel(attemptID string) string {
	return fmt.Sprintf("attempt:%s:feedback", attemptID)
}

// AttemptAnswersKey returns the hash holding an attempt's draft answers, one field per question
func (r *CacheKeyStruct) AttemptAnswersKey(attemptID string) string {
	return fmt.Sprintf("attempt:%s:answers", attemptID)
}

// RevokedTokenKey returns the cache key marking a token ID as revoked
func (r *CacheKeyStruct) RevokedTokenKey(jti string) string {
	return fmt.Sprintf("token:%s:revoked", jti)
}

var CacheKey = NewCacheKeyStruct()
