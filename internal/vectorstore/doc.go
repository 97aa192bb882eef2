// Package vectorstore provides the similarity index behind namingd's
// semantic search.
//
// Two backends implement Index:
//   - QdrantIndex talks to a Qdrant server over gRPC (port 6334).
//   - ChromemIndex embeds chromem-go in-process, in memory or persisted
//     to a directory of gob files.
//
// Records are keyed by catalog row id and carry a fixed Payload of
// {Name, Label}. Vectors are computed by the caller; the index never
// embeds text itself.
//
// # Usage
//
//	idx, err := vectorstore.NewChromemIndex(vectorstore.ChromemConfig{VectorSize: 512}, logger)
//	if err != nil {
//	    return err
//	}
//	defer idx.Close()
//
//	_ = idx.EnsureCollection(ctx, "morphemes", 512)
//	_ = idx.Upsert(ctx, "morphemes", []vectorstore.Record{{ID: 1, Vector: v, Payload: p}})
//	hits, err := idx.Search(ctx, "morphemes", q, 5)
package vectorstore
