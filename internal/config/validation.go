package config

import "fmt"

// Validate performs range and consistency checks on the loaded configuration.
// Returns sentinel errors wrapped with details so callers can use errors.Is.
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	if c.Addr == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidAddr)
	}

	if len(c.Models) == 0 {
		return ErrNoModels
	}
	if _, ok := c.Model(c.DefaultModel); !ok {
		return fmt.Errorf("%w: %q", ErrUnknownDefaultModel, c.DefaultModel)
	}

	if c.MaxRounds < 1 || c.MaxRounds > 10 {
		return fmt.Errorf("%w: %d (want 1-10)", ErrInvalidMaxRounds, c.MaxRounds)
	}

	if c.Review.Threshold < 0 || c.Review.Threshold > 1 {
		return fmt.Errorf("%w: %g (want 0-1)", ErrInvalidReviewThreshold, c.Review.Threshold)
	}
	if c.Review.MaxRecommended < 1 {
		return fmt.Errorf("%w: max_recommended %d (want >= 1)", ErrInvalidReviewThreshold, c.Review.MaxRecommended)
	}

	if c.Ingest.ChunkSize < 1 {
		return fmt.Errorf("%w: chunk_size %d (want >= 1)", ErrInvalidChunking, c.Ingest.ChunkSize)
	}
	if c.Ingest.ChunkOverlap < 0 || c.Ingest.ChunkOverlap >= c.Ingest.ChunkSize {
		return fmt.Errorf("%w: chunk_overlap %d must be in [0, chunk_size)", ErrInvalidChunking, c.Ingest.ChunkOverlap)
	}

	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPostgresPort, c.PostgresPort)
	}

	return nil
}
