// Package repoingest ingests GitHub repositories into a local chunk store.
//
// A Database opens the store and hands out the pieces that work on it: a
// sink for ingestion pipelines, a semantic searcher and a reembedder.
//
// # Usage
//
//	db, err := repoingest.NewDatabase("chunks.db",
//	    repoingest.WithAIConfig(ai.DefaultConfig()))
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	client, err := remote.NewClient(remote.WithToken(os.Getenv("GITHUB_TOKEN")))
//	if err != nil {
//	    return err
//	}
//	pipeline, err := db.NewPipeline(client)
//	if err != nil {
//	    return err
//	}
//	defer pipeline.Release()
//
//	report, err := pipeline.Run(ctx, "owner/name", "", db.Sink(), false)
package repoingest
