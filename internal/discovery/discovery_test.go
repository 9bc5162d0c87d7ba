package discovery

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToDNSSDConfigMapsFieldsDirectly(t *testing.T) {
	ad := Advertisement{Name: "radiod on tower1", Type: ServiceTypeAudio, Port: 5004}
	cfg := toDNSSDConfig(ad)
	assert.Equal(t, ad.Name, cfg.Name)
	assert.Equal(t, ad.Type, cfg.Type)
	assert.Equal(t, ad.Port, cfg.Port)
}

func TestServiceTypeConstantsAreDistinct(t *testing.T) {
	assert.NotEqual(t, ServiceTypeStatus, ServiceTypeAudio)
}
