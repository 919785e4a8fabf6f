package melco

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/elliotchance/orderedmap"
)

const (
	DefaultPort = 80
	DefaultPath = "/servlet/MIMEReceiveServlet"

	// XMLProlog precedes every request document.
	XMLProlog = `<?xml version="1.0" encoding="UTF-8"?>`

	// Wildcard is the attribute value asking the controller to fill in the
	// current value in a getRequest.
	Wildcard = "*"

	// MaxResponseSize bounds how much of a response body is read.
	// Group lists of large sites stay well below this.
	MaxResponseSize = 1 << 20
)

// Command is the request kind carried in the Packet envelope.
type Command string

const (
	CommandGet Command = "getRequest"
	CommandSet Command = "setRequest"
)

// Element names used by the protocol.
const (
	ElementMnet         = "Mnet"
	ElementControlGroup = "ControlGroup"
	ElementSystemData   = "SystemData"
)

// ControlGroup sublists. Only SublistMnetList is needed for group discovery.
const (
	SublistAreaList      = "AreaList"
	SublistAreaGroupList = "AreaGroupList"
	SublistMnetGroupList = "MnetGroupList"
	SublistMnetList      = "MnetList"
	SublistDdcInfoList   = "DdcInfoList"
	SublistViewInfoList  = "ViewInfoList"
	SublistMcList        = "McList"
	SublistMcNameList    = "McNameList"
)

var knownSublists = map[string]bool{
	SublistAreaList:      true,
	SublistAreaGroupList: true,
	SublistMnetGroupList: true,
	SublistMnetList:      true,
	SublistDdcInfoList:   true,
	SublistViewInfoList:  true,
	SublistMcList:        true,
	SublistMcNameList:    true,
}

// SystemData attributes requested by EncodeGetSystemData.
var systemDataAttributes = []string{"Version", "TempUnit", "Model", "FilterSign", "ShortName", "DateFormat"}

type attr struct {
	name  string
	value string
}

// buildPacket wraps payload in the Packet envelope. All encoders go through
// here so get and set documents share one structure.
func buildPacket(cmd Command, payload string) []byte {
	var buf bytes.Buffer
	buf.WriteString(XMLProlog)
	buf.WriteString("<Packet><Command>")
	buf.WriteString(string(cmd))
	buf.WriteString("</Command><DatabaseManager>")
	buf.WriteString(payload)
	buf.WriteString("</DatabaseManager></Packet>")
	return buf.Bytes()
}

// emptyElement renders <name a="v" .../> with attributes in the given order.
func emptyElement(name string, attrs []attr) string {
	var b strings.Builder
	b.WriteString("<")
	b.WriteString(name)
	for _, a := range attrs {
		b.WriteString(" ")
		b.WriteString(a.name)
		b.WriteString(`="`)
		b.WriteString(escapeAttr(a.value))
		b.WriteString(`"`)
	}
	b.WriteString("/>")
	return b.String()
}

func escapeAttr(input string) string {
	var b strings.Builder
	if err := xml.EscapeText(&b, []byte(input)); err != nil {
		return input
	}
	return b.String()
}

// EncodeGetMnet builds a getRequest asking for the named attributes of group.
// The Group attribute comes first, followed by names in the order given.
func EncodeGetMnet(group string, names []string) ([]byte, error) {
	if err := validateGroup(group); err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, &ValidationError{Field: "attributes", Value: "", Reason: "at least one attribute is required"}
	}

	attrs := make([]attr, 0, len(names)+1)
	attrs = append(attrs, attr{name: AttrGroup, value: group})
	seen := map[string]bool{AttrGroup: true}
	for _, name := range names {
		if !isXMLName(name) {
			return nil, &ValidationError{Field: "attribute", Value: name, Reason: "not an XML name"}
		}
		if seen[name] {
			continue
		}
		seen[name] = true
		attrs = append(attrs, attr{name: name, value: Wildcard})
	}

	return buildPacket(CommandGet, emptyElement(ElementMnet, attrs)), nil
}

// EncodeSetMnet builds a setRequest writing values to group. Keys of values
// must be attribute names; values may be strings, Drive, Mode, integers or
// floats. Attributes are written in the map's insertion order.
func EncodeSetMnet(group string, values *orderedmap.OrderedMap) ([]byte, error) {
	if err := validateGroup(group); err != nil {
		return nil, err
	}
	if values == nil || values.Len() == 0 {
		return nil, &ValidationError{Field: "attributes", Value: "", Reason: "at least one attribute is required"}
	}

	attrs := make([]attr, 0, values.Len()+1)
	attrs = append(attrs, attr{name: AttrGroup, value: group})
	for _, key := range values.Keys() {
		name, ok := key.(string)
		if !ok {
			return nil, &ValidationError{Field: "attribute", Value: fmt.Sprint(key), Reason: "name must be a string"}
		}
		if name == AttrGroup {
			return nil, &ValidationError{Field: "attribute", Value: name, Reason: "taken from the group argument"}
		}
		if !isXMLName(name) {
			return nil, &ValidationError{Field: "attribute", Value: name, Reason: "not an XML name"}
		}
		raw, _ := values.Get(key)
		value, err := FormatValue(raw)
		if err != nil {
			return nil, &ValidationError{Field: name, Value: fmt.Sprint(raw), Reason: err.Error()}
		}
		attrs = append(attrs, attr{name: name, value: value})
	}

	return buildPacket(CommandSet, emptyElement(ElementMnet, attrs)), nil
}

// EncodeGetControlGroup builds a getRequest for one ControlGroup sublist,
// e.g. <ControlGroup><MnetList/></ControlGroup>.
func EncodeGetControlGroup(sublist string) ([]byte, error) {
	if !knownSublists[sublist] {
		return nil, &ValidationError{Field: "sublist", Value: sublist, Reason: "unknown ControlGroup sublist"}
	}
	payload := "<" + ElementControlGroup + "><" + sublist + "/></" + ElementControlGroup + ">"
	return buildPacket(CommandGet, payload), nil
}

// EncodeGetSystemData builds a getRequest for the controller's SystemData.
func EncodeGetSystemData() []byte {
	attrs := make([]attr, 0, len(systemDataAttributes))
	for _, name := range systemDataAttributes {
		attrs = append(attrs, attr{name: name, value: Wildcard})
	}
	return buildPacket(CommandGet, emptyElement(ElementSystemData, attrs))
}

// FormatValue renders a set value as the controller expects it. Numbers use
// their shortest plain decimal form, independent of locale.
func FormatValue(v any) (string, error) {
	switch val := v.(type) {
	case string:
		return val, nil
	case Drive:
		return string(val), nil
	case Mode:
		return string(val), nil
	case int:
		return strconv.Itoa(val), nil
	case int64:
		return strconv.FormatInt(val, 10), nil
	case float32:
		if math.IsNaN(float64(val)) || math.IsInf(float64(val), 0) {
			return "", errors.New("number must be finite")
		}
		return strconv.FormatFloat(float64(val), 'f', -1, 32), nil
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return "", errors.New("number must be finite")
		}
		return strconv.FormatFloat(val, 'f', -1, 64), nil
	default:
		return "", fmt.Errorf("unsupported value type %T", v)
	}
}

// DecodeMnetAttributes returns the attributes of the first Mnet element in a
// response. A well-formed document without an Mnet element yields an empty map.
func DecodeMnetAttributes(data []byte) (map[string]string, error) {
	return DecodeElementAttributes(data, ElementMnet)
}

// DecodeElementAttributes returns the attributes of the first element named
// name, or an empty map when there is none.
func DecodeElementAttributes(data []byte, name string) (map[string]string, error) {
	var found map[string]string
	err := walkElements(data, func(se xml.StartElement) {
		if found == nil && se.Name.Local == name {
			found = attrMap(se)
		}
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return map[string]string{}, nil
	}
	return found, nil
}

// DecodeGroupList returns every Mnet element carrying a Group attribute, in
// document order. Elements without Group are skipped.
func DecodeGroupList(data []byte) ([]GroupDescriptor, error) {
	var groups []GroupDescriptor
	err := walkElements(data, func(se xml.StartElement) {
		if se.Name.Local != ElementMnet {
			return
		}
		attrs := attrMap(se)
		group, ok := attrs[AttrGroup]
		if !ok || group == "" {
			return
		}
		name := attrs[AttrGroupNameWeb]
		if name == "" {
			name = attrs[AttrGroupName]
		}
		groups = append(groups, GroupDescriptor{Group: group, Name: name})
	})
	if err != nil {
		return nil, err
	}
	return groups, nil
}

// walkElements calls visit for every start element and fails with a
// DecodeError unless data is a well-formed document with exactly one root
// element and nothing but whitespace, comments or processing instructions
// outside it.
func walkElements(data []byte, visit func(xml.StartElement)) error {
	decoder := xml.NewDecoder(bytes.NewReader(data))
	// Controllers declare legacy encodings for what is ASCII attribute text.
	decoder.CharsetReader = func(_ string, input io.Reader) (io.Reader, error) {
		return input, nil
	}

	sawRoot := false
	depth := 0
	for {
		tok, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return &DecodeError{Err: err}
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if depth == 0 && sawRoot {
				return &DecodeError{Err: fmt.Errorf("element <%s> after the root element", t.Name.Local)}
			}
			sawRoot = true
			depth++
			visit(t)
		case xml.EndElement:
			depth--
		case xml.CharData:
			if depth == 0 && len(bytes.TrimSpace(t)) > 0 {
				return &DecodeError{Err: errors.New("text outside the root element")}
			}
		}
	}
	if !sawRoot {
		return &DecodeError{Err: errors.New("no root element")}
	}
	return nil
}

func attrMap(se xml.StartElement) map[string]string {
	attrs := make(map[string]string, len(se.Attr))
	for _, a := range se.Attr {
		attrs[a.Name.Local] = a.Value
	}
	return attrs
}

func isXMLName(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_':
		case i > 0 && (r >= '0' && r <= '9' || r == '-' || r == '.'):
		default:
			return false
		}
	}
	return true
}
