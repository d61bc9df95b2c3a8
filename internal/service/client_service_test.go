package service

import (
	"testing"

	"github.com/innovators/mlms/mlms-backend/internal/domain"
	"github.com/innovators/mlms/mlms-backend/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateClient_Success(t *testing.T) {
	repo := testutil.NewMockClientRepository()
	publisher := &testutil.MockEventPublisher{}
	svc := NewClientService(repo)
	svc.SetEventPublisher(publisher)

	phone := "  0300-1234567 "
	client, err := svc.CreateClient(CreateClientInput{
		Name:          "  Ayesha Khan ",
		Phone:         &phone,
		PreviousLoans: 2,
		CNICVerified:  true,
	})
	require.NoError(t, err)

	assert.Equal(t, int32(1), client.ID)
	assert.Equal(t, "Ayesha Khan", client.Name)
	require.NotNil(t, client.Phone)
	assert.Equal(t, "0300-1234567", *client.Phone)
	assert.Equal(t, domain.RiskLow, client.RiskLevel)
	assert.Equal(t, []string{"client.created"}, publisher.Types())
}

func TestCreateClient_Validation(t *testing.T) {
	tests := []struct {
		name    string
		input   CreateClientInput
		wantErr error
	}{
		{"empty name", CreateClientInput{Name: "   "}, domain.ErrClientNameEmpty},
		{"negative history", CreateClientInput{Name: "A", MissedPayments: -1}, domain.ErrClientHistoryNegative},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := testutil.NewMockClientRepository()
			svc := NewClientService(repo)

			_, err := svc.CreateClient(tt.input)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, repo.Clients)
		})
	}
}

func TestCreateClient_BlankPhoneDropped(t *testing.T) {
	svc := NewClientService(testutil.NewMockClientRepository())
	blank := " "

	client, err := svc.CreateClient(CreateClientInput{Name: "Bilal", Phone: &blank})
	require.NoError(t, err)
	assert.Nil(t, client.Phone)
}

func TestGetClient_NotFound(t *testing.T) {
	svc := NewClientService(testutil.NewMockClientRepository())

	_, err := svc.GetClient(99)
	assert.ErrorIs(t, err, domain.ErrClientNotFound)
}

func TestListClients(t *testing.T) {
	repo := testutil.NewMockClientRepository()
	repo.AddClient(&domain.Client{ID: 2, Name: "B"})
	repo.AddClient(&domain.Client{ID: 1, Name: "A"})
	svc := NewClientService(repo)

	clients, err := svc.ListClients()
	require.NoError(t, err)
	require.Len(t, clients, 2)
	assert.Equal(t, "A", clients[0].Name)
}
