package lookup

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatch(t *testing.T) {
	values := [][]interface{}{
		{"Nro Doc", "Nombre"}, // header
		{"12345678", "Juan Perez"},
		{"20-40937847-2", "Estudio SA"},
		{"solo una columna"},
	}

	name, found := match(values, "12345678")
	assert.True(t, found)
	assert.Equal(t, "Juan Perez", name)

	name, found = match(values, "20409378472")
	assert.True(t, found, "formatted reference entries match by digits")
	assert.Equal(t, "Estudio SA", name)

	_, found = match(values, "99999999")
	assert.False(t, found)

	_, found = match(values, "")
	assert.False(t, found)
}
