package neo4j

import (
	"context"
	"errors"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/notegraph/graphsearch/internal/infrastructure/resilience"
)

// classifyNeo4jError leans on the driver's own retryability verdict.
// Context cancellation is terminal and never feeds the breaker.
func classifyNeo4jError(err error) resilience.ErrorClass {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClass{}
	}
	if neo4j.IsRetryable(err) {
		return resilience.ErrorClass{Retry: true, CountFailure: true}
	}
	return resilience.ErrorClass{CountFailure: true}
}
