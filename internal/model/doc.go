// Package model defines the data structures shared by the crawler, the
// download manager, the database and the report writers.
//
// This package contains the following main types:
//   - DiscoveryRecord: the immutable outcome of one fetch attempt while crawling
//   - Category: the closed set of resource kinds a response is classified into
//   - DownloadItem: one entry of a download batch
//   - CompletionRecord: the outcome of a whole download batch
//
// Design decision: We keep these types free of behaviour that needs network
// or filesystem access. Every other package depends on model, and model
// depends on nothing inside this module, which keeps the import graph acyclic.
package model
