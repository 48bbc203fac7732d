package worker

import (
	"time"

	"github.com/NikushaDevashvili/observa-api-sub002/internal/analysis/judge"
	analysismodel "github.com/NikushaDevashvili/observa-api-sub002/internal/analysis/model"
	signalmodel "github.com/NikushaDevashvili/observa-api-sub002/internal/signal/model"
)

// Judge-score thresholds. Scores where higher is better (faithfulness,
// context relevance, quality) alarm below the cutoffs; hallucination scores
// alarm above them.
const (
	qualityHighCutoff   = 0.5
	qualityMediumCutoff = 0.7

	hallucinationHighCutoff   = 0.5
	hallucinationMediumCutoff = 0.3

	embeddingDriftCutoff = 0.5
	duplicateCutoff      = 0.9
	clusterOutlierCutoff = 0.8
)

// signalsFromScores translates one layer's judge scores into signals. Scores
// inside their healthy band produce nothing: if zero signals result, nothing
// is written.
func signalsFromScores(
	job *analysismodel.AnalysisJob,
	layer analysismodel.Layer,
	scores *judge.Scores,
) []signalmodel.Signal {
	var signals []signalmodel.Signal
	emit := func(name string, sigType signalmodel.SignalType, value float64, severity signalmodel.Severity) {
		signals = append(signals, signalmodel.Signal{
			TenantID:       job.TenantID,
			ProjectID:      job.ProjectID,
			Environment:    job.Environment,
			TraceID:        job.TraceID,
			SpanID:         job.SpanID,
			ParentSpanID:   job.ParentSpanID,
			ConversationID: job.ConversationID,
			SessionID:      job.SessionID,
			UserID:         job.UserID,
			Name:           name,
			Type:           sigType,
			Value:          value,
			Severity:       severity,
			Metadata:       map[string]string{"layer": string(layer), "trigger": string(job.Trigger)},
			Timestamp:      time.Now().UTC(),
		})
	}

	lowIsBad := func(name string, score *float64) {
		if score == nil {
			return
		}
		switch {
		case *score < qualityHighCutoff:
			emit(name, signalmodel.TypeThreshold, *score, signalmodel.SeverityHigh)
		case *score < qualityMediumCutoff:
			emit(name, signalmodel.TypeThreshold, *score, signalmodel.SeverityMedium)
		}
	}

	switch layer {
	case analysismodel.Layer3:
		if scores.EmbeddingDrift != nil && *scores.EmbeddingDrift > embeddingDriftCutoff {
			emit("embedding_drift", signalmodel.TypeMismatch, *scores.EmbeddingDrift, signalmodel.SeverityMedium)
		}
		if scores.DuplicateScore != nil && *scores.DuplicateScore > duplicateCutoff {
			emit("duplicate_output", signalmodel.TypeLoop, *scores.DuplicateScore, signalmodel.SeverityLow)
		}
		if scores.ClusterOutlier != nil && *scores.ClusterOutlier > clusterOutlierCutoff {
			emit("cluster_outlier", signalmodel.TypeMismatch, *scores.ClusterOutlier, signalmodel.SeverityMedium)
		}
	case analysismodel.Layer4:
		lowIsBad("low_faithfulness", scores.Faithfulness)
		lowIsBad("low_context_relevance", scores.ContextRelevance)
		lowIsBad("low_quality", scores.Quality)
		if scores.Hallucination != nil {
			switch {
			case *scores.Hallucination > hallucinationHighCutoff:
				emit("hallucination", signalmodel.TypeMismatch, *scores.Hallucination, signalmodel.SeverityHigh)
			case *scores.Hallucination > hallucinationMediumCutoff:
				emit("hallucination", signalmodel.TypeMismatch, *scores.Hallucination, signalmodel.SeverityMedium)
			}
		}
	}
	return signals
}
