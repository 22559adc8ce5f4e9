package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectionStatus_Valid(t *testing.T) {
	assert.True(t, ConnectionStatusActive.Valid())
	assert.True(t, ConnectionStatusInactive.Valid())
	assert.True(t, ConnectionStatusError.Valid())
	assert.False(t, ConnectionStatus("paused").Valid())
}

func TestCreateShopRequest_Validate(t *testing.T) {
	valid := func() *CreateShopRequest {
		return &CreateShopRequest{
			DisplayName:       "Toko Maju",
			Platform:          "shopee",
			Site:              "id",
			ExternalBrowserID: "browser-1",
		}
	}

	require.NoError(t, valid().Validate())

	missingName := valid()
	missingName.DisplayName = "  "
	require.ErrorContains(t, missingName.Validate(), "display_name is required")

	missingSite := valid()
	missingSite.Site = ""
	require.ErrorContains(t, missingSite.Validate(), "site is required")

	missingBrowser := valid()
	missingBrowser.ExternalBrowserID = ""
	require.ErrorContains(t, missingBrowser.Validate(), "external_browser_id is required")
}

func TestUpdateShopRequest_Validate(t *testing.T) {
	require.NoError(t, (&UpdateShopRequest{}).Validate())

	status := ConnectionStatusError
	require.NoError(t, (&UpdateShopRequest{ConnectionStatus: &status}).Validate())

	bad := ConnectionStatus("paused")
	require.ErrorContains(t, (&UpdateShopRequest{ConnectionStatus: &bad}).Validate(), "invalid connection_status")

	blank := "   "
	require.ErrorContains(t, (&UpdateShopRequest{DisplayName: &blank}).Validate(), "display_name cannot be blank")
}
