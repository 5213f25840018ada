package query

import "github.com/kailas-cloud/docquery/internal/domain/document"

// partition splits docs into ceil(len/size) contiguous groups.
// Groups are sub-slices of docs; flattening them reproduces docs exactly.
func partition(docs []document.Document, size int) [][]document.Document {
	if len(docs) == 0 || size <= 0 {
		return nil
	}
	groups := make([][]document.Document, 0, (len(docs)+size-1)/size)
	for start := 0; start < len(docs); start += size {
		end := min(start+size, len(docs))
		groups = append(groups, docs[start:end:end])
	}
	return groups
}
