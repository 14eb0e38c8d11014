package client_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medconnect-service/pkg/client"
)

func TestLimitModal(t *testing.T) {
	t.Parallel()

	m := client.NewLimitModal()
	var seen []client.ModalState
	m.OnChange(func(s client.ModalState, _ *client.LimitData) {
		seen = append(seen, s)
	})

	assert.Equal(t, client.ModalClosed, m.State())
	assert.Nil(t, m.Data())

	m.Dismiss()
	assert.Empty(t, seen, "closing a closed modal is a no-op")

	m.Open(client.LimitData{LimitType: client.ActionAppointment, CurrentUsage: client.UsageSnapshot{Current: 1, Limit: 1}})
	require.True(t, m.IsOpen())
	assert.Equal(t, "open", m.State().String())

	data := m.Data()
	require.NotNil(t, data)
	data.CurrentUsage.Current = 99
	assert.Equal(t, int64(1), m.Data().CurrentUsage.Current, "Data returns a copy")

	m.NavigateAway()
	assert.False(t, m.IsOpen())
	assert.Nil(t, m.Data())

	m.Open(client.LimitData{LimitType: client.ActionAIMessage})
	m.Dismiss()

	assert.Equal(t, []client.ModalState{client.ModalOpen, client.ModalClosed, client.ModalOpen, client.ModalClosed}, seen)
}
