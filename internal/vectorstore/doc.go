// Package vectorstore implements the conversation and document stores.
//
// Three backends are provided:
//
//   - PostgresStore keeps turns, tenant documents and client error reports in
//     Postgres with pgvector columns and HNSW cosine indexes. It is the
//     production backend.
//   - ChromemStore is an in-process store built on chromem-go. Similarity
//     collections are created per (user, business) pair and per business,
//     and a mutex-guarded log answers recency reads. Data lives only as long
//     as the process.
//   - QdrantStore serves tenant documents from a Qdrant collection filtered
//     by business_id. Qdrant points require a vector, so documents without
//     an embedding are not written; they could never be returned by a
//     similarity read anyway.
//
// Open wires the backends selected in config.StorageConfig.
//
// Every store method opens a span and records its latency on the
// ragbrain_store_* Prometheus metrics.
package vectorstore
