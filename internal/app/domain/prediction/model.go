// Package prediction defines model outputs and the model registry.
package prediction

import "time"

// GapPrediction is one model prediction for a stock on a trading day.
// Actual* fields are filled in after the market closes.
type GapPrediction struct {
	ID        int64
	Timestamp time.Time
	StockCode string
	StockName string
	Exchange  string

	PredictionDate     time.Time
	GapRate            float64
	StockOpen          float64
	ProbUp             float64
	ProbDown           float64
	PredictedDirection int
	ExpectedReturn     float64
	ReturnIfUp         float64
	ReturnIfDown       float64
	MaxReturnIfUp      float64
	TakeProfitTarget   float64
	Signal             string
	ModelVersion       string
	Confidence         string

	ActualClose     float64
	ActualHigh      float64
	ActualLow       float64
	ActualReturn    float64
	ReturnDiff      float64
	ActualMaxReturn float64
	MaxReturnDiff   float64
	// DirectionCorrect is -1 until the actuals are known, then 0 or 1.
	DirectionCorrect int
}

// ModelVersion is a trained model registered for serving, with its report
// bundle stored under the models directory.
type ModelVersion struct {
	ID          int64
	Version     string
	Status      string
	TriggerType string

	TrainingSamples         int64
	TrainingDataStart       string
	TrainingDataEnd         string
	TrainingDurationSeconds float64

	CreatedAt   time.Time
	ActivatedAt time.Time
}
