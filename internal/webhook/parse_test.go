package webhook

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseEventVariants(t *testing.T) {
	cases := []struct {
		name string
		body string
		want Event
	}{
		{
			name: "nested data with status object",
			body: `{"event":"task.updated","data":{"id":12345,"identifier":"OS-77","status":{"name":"Finalizada"}}}`,
			want: Event{Name: "task.updated", TaskID: "12345", Identifier: "OS-77", StatusLabel: "Finalizada"},
		},
		{
			name: "task envelope with statusName",
			body: `{"type":"taskChanged","task":{"taskId":"abc-1","statusName":"Em Andamento"}}`,
			want: Event{Name: "taskChanged", TaskID: "abc-1", StatusLabel: "Em Andamento"},
		},
		{
			name: "flat payload with plain status string",
			body: `{"eventType":"task.status","id":"55","orderNumber":102,"status":"Cancelada"}`,
			want: Event{Name: "task.status", TaskID: "55", Identifier: "102", StatusLabel: "Cancelada"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseEvent([]byte(tc.body))
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestParseEventEquipment(t *testing.T) {
	body := `{"event":"equipment.created","data":{"id":"t1","equipment":{
		"externalId":"eq-9","number":"SN-100","brand":"Carrier","model":"X500","type":"split",
		"customer":{"id":"cust-7"}}}}`

	ev, err := ParseEvent([]byte(body))
	require.NoError(t, err)
	require.NotNil(t, ev.Equipment)
	require.Equal(t, "eq-9", ev.Equipment.ExternalID)
	require.Equal(t, "SN-100", ev.Equipment.SerialNumber)
	require.Equal(t, "Carrier", ev.Equipment.Brand)
	require.Equal(t, "X500", ev.Equipment.Model)
	require.Equal(t, "split", ev.Equipment.Type)
	require.Equal(t, "cust-7", ev.Equipment.CustomerExternalID)
}

func TestParseEventEquipmentWithoutExternalIDDropped(t *testing.T) {
	body := `{"event":"equipment.created","data":{"equipment":{"brand":"Carrier"}}}`
	ev, err := ParseEvent([]byte(body))
	require.NoError(t, err)
	require.Nil(t, ev.Equipment)
}

func TestParseEventItems(t *testing.T) {
	body := `{"event":"task.completed","data":{"id":"t2","products":[
		{"sku":"FLT-01","description":"Filter","qty":2},
		{"name":"Gas R410","amount":"1.5"},
		{"quantity":3}]}}`

	ev, err := ParseEvent([]byte(body))
	require.NoError(t, err)
	require.Len(t, ev.Items, 2)
	require.Equal(t, UsageItem{ProductCode: "FLT-01", ProductName: "Filter", Quantity: 2}, ev.Items[0])
	require.Equal(t, UsageItem{ProductName: "Gas R410", Quantity: 1.5}, ev.Items[1])
}

func TestParseEventRejectsInvalidJSON(t *testing.T) {
	_, err := ParseEvent([]byte(`{"event":`))
	require.Error(t, err)
}
