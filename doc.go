// Package biomatch is an embeddable multi-modal biometric matching engine.
//
// It verifies identity claims against enrolled biometric samples across
// three modalities: face embeddings and voice embeddings are matched by
// cosine similarity over a ranked identity index, and gesture recordings
// (six-channel IMU sequences) are matched by dynamic time warping against
// the claimed user's own enrollments.
//
// All enrollment state lives in memory and is written through to one
// snapshot artifact per modality, so every successful enrollment is durable
// before its call returns. When a flush fails the in-memory mutation is
// rolled back, keeping memory and disk consistent.
//
// Basic usage:
//
//	engine, err := biomatch.Open(ctx, "./data")
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer engine.Close()
//
//	if _, err := engine.EnrollFace(ctx, "alice", embedding); err != nil {
//		log.Fatal(err)
//	}
//
//	result, err := engine.VerifyFace(ctx, "alice", probe)
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Println(result.Match, result.Confidence)
package biomatch
