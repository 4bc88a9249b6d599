// Package services implements the business logic layer of the water
// quality visualizer. It sits between the HTTP handlers and the parsing
// and analysis packages so that business rules live in one testable
// place.
//
// # Layout
//
// Two services cover the whole surface:
//
//	DatasetService  owns the current dataset and every operation on it:
//	                upload validation, parsing, statistics, filtering,
//	                chart assembly and websocket event publication
//	HealthService   reports liveness, readiness and runtime details
//
// Both are built around constructor injection and context propagation,
// which keeps them mockable and cancellation-aware without any globals.
//
// # Dataset Ownership
//
// DatasetService keeps exactly one dataset in memory and swaps it only
// when a load fully succeeds. Reads hand out immutable snapshots, so a
// concurrent upload never disturbs an in-flight statistics request.
//
// # Errors
//
// Methods return domain sentinels that handlers map onto HTTP problem
// responses:
//
//	ErrNoDataset                         nothing has been loaded yet
//	ErrColumnNotFound, ErrNoNumericData  column lookups
//	ErrSampleNotFound                    the sample library
//	ErrInvalidChartType, ErrInvalidInput bad requests
//
// Parse and validation failures pass through with their own sentinels
// intact, so errors.Is works across layer boundaries.
//
// # Testing
//
// Tests mock the notifier dependency:
//
//	notifier := &MockDatasetNotifier{}
//	service := NewDatasetService(nil, nil, notifier, nil, logger)
//
//	notifier.On("BroadcastDatasetLoadedWithTrace", mock.Anything, mock.Anything).Return()
//	meta, err := service.Load(ctx, "field.csv", content)
package services
