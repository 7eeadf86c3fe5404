package search

import (
	"context"

	"go.uber.org/zap"
)

// CapabilityProber reports whether the store can execute native vector
// operators. The probe distinguishes "operator unsupported" (false, nil)
// from real store failures, which it returns as errors.
type CapabilityProber interface {
	ProbeVectorSupport(ctx context.Context) (bool, error)
}

// SelectRanker probes the store once at startup and picks the ranking
// strategy, keeping the hot path free of per-request exception handling.
func SelectRanker(ctx context.Context, prober CapabilityProber, primary, fallback Ranker, logger *zap.Logger) (Ranker, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	supported, err := prober.ProbeVectorSupport(ctx)
	if err != nil {
		return nil, err
	}
	if supported {
		logger.Info("vector operators available, using native ranking")
		return primary, nil
	}
	logger.Warn("vector operators unsupported, using in-memory ranking fallback")
	return fallback, nil
}
