package logger

import (
	"go.uber.org/zap"
)

var Log *zap.SugaredLogger

func init() {
	// Packages may log before Init runs (mostly under `go test`).
	Log = zap.NewNop().Sugar()
}

func Init() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic("failed to initialize zap logger: " + err.Error())
	}
	Log = logger.Sugar()
}
