// Package memory provides document retrieval for agents: an Index contract,
// an in-process keyword index, a Qdrant-backed vector index and the
// vector_db_search tool that exposes either one to the model.
package memory
