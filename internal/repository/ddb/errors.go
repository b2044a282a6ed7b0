package ddb

import (
	"errors"

	"github.com/aws/smithy-go"

	appErrors "channelflow-backend/pkg/errors"
)

// mapError translates DynamoDB API failures into the application error
// taxonomy so callers never branch on SDK error codes.
func mapError(err error, operation string) error {
	if err == nil {
		return nil
	}

	var ae smithy.APIError
	if errors.As(err, &ae) {
		switch ae.ErrorCode() {
		case "ResourceNotFoundException":
			return appErrors.Wrap(appErrors.NewNotFound("table or resource not found"), operation)
		case "ConditionalCheckFailedException":
			return appErrors.Wrap(appErrors.NewConflict("conditional check failed"), operation)
		case "ProvisionedThroughputExceededException", "RequestLimitExceeded", "ThrottlingException":
			return appErrors.NewUnavailable(operation+": table throttled", err)
		}
	}

	return appErrors.Wrap(err, operation)
}
