// Package docquery runs one question against many documents with a
// structured-output language model and returns one typed answer per document.
//
// Documents are first narrowed by metadata filters, then dispatched in
// batches: every surviving document gets its own generation call whose
// system prompt carries that document, and the structured response is
// decoded into T. Results come back in input order, each paired with the
// document it was generated from.
//
// # Default schema
//
//	gen := docquery.NewOpenAIGenerator(docquery.OpenAIConfig{
//	    APIKey: os.Getenv("OPENAI_API_KEY"),
//	    Model:  "gpt-4o-mini",
//	})
//	client, _ := docquery.New[docquery.Relevance[string]](gen,
//	    docquery.WithSystem("Quote passages that answer the question."),
//	)
//	year, _ := docquery.NewFilter("year", docquery.Number(2021), docquery.GreaterThanOrEqual)
//	results, _ := client.Query(ctx, "What was the 2021 revenue?", docs,
//	    &docquery.QueryOptions{Filter: []docquery.Filter{year}},
//	)
//
// # Custom schema
//
//	type Verdict struct {
//	    Answer string `json:"answer"`
//	}
//
//	s, _ := docquery.NewSchema("verdict", "", json.RawMessage(`{...}`), true)
//	client, _ := docquery.New[Verdict](gen, docquery.WithSchema(s))
//
// Any failing generation call aborts the whole query with a *QueryError;
// partial results are never returned.
package docquery
