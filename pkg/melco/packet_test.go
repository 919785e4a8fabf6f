package melco

import (
	"errors"
	"strings"
	"testing"

	"github.com/elliotchance/orderedmap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeGetMnet_AttributeOrder(t *testing.T) {
	data, err := EncodeGetMnet("5", []string{"Drive", "Mode"})
	require.NoError(t, err)

	expected := XMLProlog +
		"<Packet><Command>getRequest</Command>" +
		`<DatabaseManager><Mnet Group="5" Drive="*" Mode="*"/></DatabaseManager></Packet>`
	assert.Equal(t, expected, string(data))
	assert.Equal(t, 1, strings.Count(string(data), "<Mnet "))
}

func TestEncodeGetMnet_SkipsDuplicates(t *testing.T) {
	data, err := EncodeGetMnet("5", []string{"Group", "Drive", "Drive"})
	require.NoError(t, err)
	assert.Contains(t, string(data), `<Mnet Group="5" Drive="*"/>`)
}

func TestEncodeGetMnet_Invalid(t *testing.T) {
	_, err := EncodeGetMnet("", []string{"Drive"})
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "group", validationErr.Field)

	_, err = EncodeGetMnet("5", nil)
	assert.ErrorAs(t, err, &validationErr)

	_, err = EncodeGetMnet("5", []string{`Drive="ON"`})
	assert.ErrorAs(t, err, &validationErr)
}

func TestEncodeSetMnet_LiteralValues(t *testing.T) {
	values := orderedmap.NewOrderedMap()
	values.Set("SetTemp", 24.5)
	values.Set("Drive", DriveOn)
	values.Set("Mode", "COOL")

	data, err := EncodeSetMnet("12", values)
	require.NoError(t, err)

	expected := XMLProlog +
		"<Packet><Command>setRequest</Command>" +
		`<DatabaseManager><Mnet Group="12" SetTemp="24.5" Drive="ON" Mode="COOL"/></DatabaseManager></Packet>`
	assert.Equal(t, expected, string(data))
}

func TestEncodeSetMnet_Idempotent(t *testing.T) {
	build := func() []byte {
		values := orderedmap.NewOrderedMap()
		values.Set("SetTemp", 22.0)
		data, err := EncodeSetMnet("3", values)
		require.NoError(t, err)
		return data
	}
	assert.Equal(t, build(), build())
}

func TestEncodeSetMnet_EscapesValues(t *testing.T) {
	values := orderedmap.NewOrderedMap()
	values.Set("GroupNameWeb", `Office "A" & <B>`)

	data, err := EncodeSetMnet("1", values)
	require.NoError(t, err)
	assert.Contains(t, string(data), `GroupNameWeb="Office &#34;A&#34; &amp; &lt;B&gt;"`)

	attrs, err := DecodeMnetAttributes(data)
	require.NoError(t, err)
	assert.Equal(t, `Office "A" & <B>`, attrs["GroupNameWeb"])
}

func TestEncodeSetMnet_Invalid(t *testing.T) {
	var validationErr *ValidationError

	_, err := EncodeSetMnet("1", orderedmap.NewOrderedMap())
	assert.ErrorAs(t, err, &validationErr)

	_, err = EncodeSetMnet("1", nil)
	assert.ErrorAs(t, err, &validationErr)

	values := orderedmap.NewOrderedMap()
	values.Set("Group", "2")
	_, err = EncodeSetMnet("1", values)
	assert.ErrorAs(t, err, &validationErr)

	values = orderedmap.NewOrderedMap()
	values.Set("Drive", []string{"ON"})
	_, err = EncodeSetMnet("1", values)
	assert.ErrorAs(t, err, &validationErr)
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{24.0, "24"},
		{23.5, "23.5"},
		{float32(19.5), "19.5"},
		{-0.25, "-0.25"},
		{1e21, "1000000000000000000000"},
		{21, "21"},
		{int64(7), "7"},
		{ModeHeat, "HEAT"},
		{"OFF", "OFF"},
	}
	for _, tt := range tests {
		got, err := FormatValue(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestEncodeGetControlGroup(t *testing.T) {
	data, err := EncodeGetControlGroup(SublistMnetList)
	require.NoError(t, err)

	expected := XMLProlog +
		"<Packet><Command>getRequest</Command>" +
		"<DatabaseManager><ControlGroup><MnetList/></ControlGroup></DatabaseManager></Packet>"
	assert.Equal(t, expected, string(data))

	_, err = EncodeGetControlGroup("Bogus")
	var validationErr *ValidationError
	assert.ErrorAs(t, err, &validationErr)
}

func TestEncodeGetSystemData(t *testing.T) {
	data := EncodeGetSystemData()
	assert.Contains(t, string(data), `<SystemData Version="*" TempUnit="*" Model="*" FilterSign="*" ShortName="*" DateFormat="*"/>`)
	assert.Contains(t, string(data), "<Command>getRequest</Command>")
}

func TestDecodeMnetAttributes(t *testing.T) {
	resp := `<Packet><DatabaseManager><Mnet Group="5" Drive="ON" Mode="COOL" SetTemp="24" InletTemp="23.5"/></DatabaseManager></Packet>`

	attrs, err := DecodeMnetAttributes([]byte(resp))
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"Group":     "5",
		"Drive":     "ON",
		"Mode":      "COOL",
		"SetTemp":   "24",
		"InletTemp": "23.5",
	}, attrs)
}

func TestDecodeMnetAttributes_FirstElementWins(t *testing.T) {
	resp := `<?xml version="1.0" encoding="UTF-8"?><Packet><Command>getResponse</Command><DatabaseManager>` +
		`<Mnet Group="1" Drive="ON"/><Mnet Group="2" Drive="OFF"/></DatabaseManager></Packet>`

	attrs, err := DecodeMnetAttributes([]byte(resp))
	require.NoError(t, err)
	assert.Equal(t, "1", attrs["Group"])
	assert.Equal(t, "ON", attrs["Drive"])
}

func TestDecodeMnetAttributes_NoMnet(t *testing.T) {
	resp := `<Packet><Command>getResponse</Command><DatabaseManager/></Packet>`

	attrs, err := DecodeMnetAttributes([]byte(resp))
	require.NoError(t, err)
	assert.NotNil(t, attrs)
	assert.Empty(t, attrs)
}

func TestDecodeMnetAttributes_Malformed(t *testing.T) {
	inputs := []string{
		"",
		"not xml at all",
		`<Packet><DatabaseManager><Mnet Group="5"></DatabaseManager></Packet>`,
		`<Packet><DatabaseManager>`,
		`<Packet><DatabaseManager/></Packet>trailing junk`,
		`<Packet><DatabaseManager/></Packet><Packet/>`,
		`junk<Packet><DatabaseManager/></Packet>`,
	}
	for _, in := range inputs {
		_, err := DecodeMnetAttributes([]byte(in))
		var decodeErr *DecodeError
		assert.ErrorAs(t, err, &decodeErr, "input %q", in)
	}
}

func TestDecodeMnetAttributes_WhitespaceAroundRoot(t *testing.T) {
	resp := "<?xml version=\"1.0\" encoding=\"UTF-8\"?>\r\n<Packet><DatabaseManager>\n" +
		"  <Mnet Group=\"2\" Drive=\"OFF\"/>\n</DatabaseManager></Packet>\n<!-- end -->\n"

	attrs, err := DecodeMnetAttributes([]byte(resp))
	require.NoError(t, err)
	assert.Equal(t, "OFF", attrs["Drive"])
}

func TestDecodeMnetAttributes_LegacyEncoding(t *testing.T) {
	resp := `<?xml version="1.0" encoding="Shift_JIS"?><Packet><DatabaseManager><Mnet Group="1" Drive="ON"/></DatabaseManager></Packet>`

	attrs, err := DecodeMnetAttributes([]byte(resp))
	require.NoError(t, err)
	assert.Equal(t, "ON", attrs["Drive"])
}

func TestDecodeGroupList(t *testing.T) {
	resp := `<?xml version="1.0" encoding="UTF-8"?><Packet><Command>getResponse</Command><DatabaseManager><ControlGroup><MnetList>` +
		`<MnetRecord/>` +
		`<Mnet Group="1" GroupNameWeb="Lobby" GroupName="LOBBY"/>` +
		`<Mnet Model="IC"/>` +
		`<Mnet Group="7" GroupName="MEETING"/>` +
		`<Mnet Group="12"/>` +
		`</MnetList></ControlGroup></DatabaseManager></Packet>`

	groups, err := DecodeGroupList([]byte(resp))
	require.NoError(t, err)
	assert.Equal(t, []GroupDescriptor{
		{Group: "1", Name: "Lobby"},
		{Group: "7", Name: "MEETING"},
		{Group: "12", Name: ""},
	}, groups)
}

func TestDecodeGroupList_Empty(t *testing.T) {
	groups, err := DecodeGroupList([]byte(`<Packet><DatabaseManager><ControlGroup><MnetList/></ControlGroup></DatabaseManager></Packet>`))
	require.NoError(t, err)
	assert.Empty(t, groups)
}

func TestDecodeGroupList_Malformed(t *testing.T) {
	_, err := DecodeGroupList([]byte(`<Packet><Mnet Group="1">`))
	assert.Error(t, err)
	assert.Equal(t, KindDecode, KindOf(err))
	assert.True(t, errors.As(err, new(*DecodeError)))
}
