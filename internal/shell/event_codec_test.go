package shell_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/libcirc/patronblocks/internal/core"
	"github.com/libcirc/patronblocks/internal/shell"
)

func Test_MarshalEvent_UnmarshalEvent_PreservesCheckout(t *testing.T) {
	// arrange
	event := core.BuildItemCheckedOut(uuid.New(), uuid.New(), time.Now().UTC().Truncate(time.Second), time.Now().UTC().Truncate(time.Second))

	// act
	payload, marshalErr := shell.MarshalEvent(event)
	restored, unmarshalErr := shell.UnmarshalEvent(core.ItemCheckedOutEventType, payload)

	// assert
	assert.NoError(t, marshalErr)
	assert.NoError(t, unmarshalErr)
	assert.Equal(t, event, restored)
}

func Test_MarshalEvent_UnmarshalEvent_PreservesBalancePrecision(t *testing.T) {
	// arrange
	event := core.BuildFeeFineBalanceChanged(
		uuid.New(), uuid.New(), uuid.New(), uuid.Nil,
		decimal.RequireFromString("14.99"), time.Now().UTC().Truncate(time.Second))

	// act
	payload, marshalErr := shell.MarshalEvent(event)
	restored, unmarshalErr := shell.UnmarshalEvent(core.FeeFineBalanceChangedEventType, payload)

	// assert
	assert.NoError(t, marshalErr)
	assert.NoError(t, unmarshalErr)
	balanceChanged, ok := restored.(core.FeeFineBalanceChanged)
	assert.True(t, ok)
	assert.True(t, balanceChanged.Balance.Equal(decimal.RequireFromString("14.99")))
}

func Test_UnmarshalEvent_UnknownType_Fails(t *testing.T) {
	_, err := shell.UnmarshalEvent("ItemTeleported", []byte(`{}`))

	assert.ErrorIs(t, err, shell.ErrUnknownEventType)
}

func Test_EventFromJSON_DispatchesOnEventType(t *testing.T) {
	// arrange
	userID := uuid.New()
	loanID := uuid.New()
	document := fmt.Sprintf(
		`{"eventType":"ItemCheckedIn","userId":%q,"loanId":%q,"occurredAt":"2026-03-01T10:00:00Z"}`,
		userID, loanID)

	// act
	event, err := shell.EventFromJSON([]byte(document))

	// assert
	assert.NoError(t, err)
	checkedIn, ok := event.(core.ItemCheckedIn)
	assert.True(t, ok)
	assert.Equal(t, userID, checkedIn.UserID)
	assert.Equal(t, loanID, checkedIn.LoanID)
}

func Test_EventFromJSON_StampsMissingOccurredAt(t *testing.T) {
	// arrange
	document := fmt.Sprintf(
		`{"eventType":"ItemCheckedIn","userId":%q,"loanId":%q}`,
		uuid.New(), uuid.New())

	// act
	event, err := shell.EventFromJSON([]byte(document))

	// assert
	assert.NoError(t, err)
	assert.False(t, event.HasOccurredAt().IsZero())
}

func Test_EventFromJSON_Validation(t *testing.T) {
	testCases := []struct {
		name        string
		document    string
		expectedErr error
	}{
		{
			name:        "loan event without user id",
			document:    fmt.Sprintf(`{"eventType":"ItemCheckedOut","loanId":%q}`, uuid.New()),
			expectedErr: shell.ErrMissingUserID,
		},
		{
			name:        "loan event without loan id",
			document:    fmt.Sprintf(`{"eventType":"ItemDeclaredLost","userId":%q}`, uuid.New()),
			expectedErr: shell.ErrMissingLoanID,
		},
		{
			name:        "balance event without fee/fine id",
			document:    fmt.Sprintf(`{"eventType":"FeeFineBalanceChanged","userId":%q,"balance":"1.00"}`, uuid.New()),
			expectedErr: shell.ErrMissingFeeFineID,
		},
		{
			name:        "not json at all",
			document:    `checked out`,
			expectedErr: shell.ErrUnmarshalingEventFailed,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := shell.EventFromJSON([]byte(tc.document))

			assert.ErrorIs(t, err, tc.expectedErr)
		})
	}
}

func Test_ValidateEvent_BalanceEventWithoutUserIsLegal(t *testing.T) {
	// arrange - the owner will be resolved by fee/fine id downstream
	event := core.BuildFeeFineBalanceChanged(
		uuid.Nil, uuid.New(), uuid.New(), uuid.Nil, decimal.RequireFromString("2.50"), time.Now())

	// act + assert
	assert.NoError(t, shell.ValidateEvent(event))
}
