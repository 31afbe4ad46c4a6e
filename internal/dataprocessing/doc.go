// Package dataprocessing turns the loaded shipment table into the descriptive
// views served by the dashboard: per-center summary statistics, a same-day
// comparison of centers, an item trend pivot and a set of whole-dataset
// insights.
//
// # Usage
//
//	s := dataprocessing.NewSummarizer(logger)
//	summaries, err := s.Summarize(ctx, ds, []string{"강남센터"}, nil)
//
//	insights, err := dataprocessing.NewInsightsGenerator(cal, logger).Generate(ctx, ds)
//
// # Error Handling
//
// Every selection that matches no rows returns an error satisfying
// errors.Is(err, errors.ErrNoData). Unknown item names are validation errors.
package dataprocessing
