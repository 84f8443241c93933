package integration

import "fieldlink/internal/normalize"

// Demo dataset served to tenants that have never connected the vendor. Every
// id carries the demo- prefix and every counterparty is obviously synthetic,
// so the records cannot be mistaken for live vendor data. The moment a real
// credential is stored the fallback is unreachable.

func demoCalls() []normalize.VendorCall {
	return []normalize.VendorCall{
		{
			ID:        "demo-call-1",
			Direction: "Inbound",
			From:      normalize.VendorParty{PhoneNumber: "+15550100001", Name: "Demo Customer Alice"},
			To:        normalize.VendorParty{PhoneNumber: "+15550100100", Name: "Demo Front Office"},
			State:     "Completed",
			StartTime: "2025-01-06T09:15:00Z",
			Duration:  184,
		},
		{
			ID:        "demo-call-2",
			Direction: "Inbound",
			From:      normalize.VendorParty{PhoneNumber: "+15550100002", Name: "Demo Customer Bob"},
			To:        normalize.VendorParty{PhoneNumber: "+15550100100", Name: "Demo Front Office"},
			State:     "Voicemail",
			StartTime: "2025-01-06T11:40:00Z",
			Duration:  0,
			Voicemail: &normalize.VendorRecording{ContentURI: "https://demo.invalid/voicemail/demo-call-2"},
		},
		{
			ID:        "demo-call-3",
			Direction: "Outbound",
			From:      normalize.VendorParty{PhoneNumber: "+15550100100", Name: "Demo Front Office"},
			To:        normalize.VendorParty{PhoneNumber: "+15550100003", Name: "Demo Customer Carol"},
			State:     "NoAnswer",
			StartTime: "2025-01-06T14:05:00Z",
			Duration:  0,
		},
	}
}

// demoCallRecords normalizes the demo dataset without touching the seen index
// or the record store. Demo rows are view-only: persisting them would seed the
// dedup state and leak synthetic records into reporting.
func (f *Facade) demoCallRecords(tenantID string) []normalize.CallRecord {
	vendorCalls := demoCalls()
	records := make([]normalize.CallRecord, 0, len(vendorCalls))
	for _, vc := range vendorCalls {
		rec, warnings := normalize.NormalizeCall(vc)
		f.logWarnings(tenantID, "call", warnings)
		rec.TenantID = tenantID
		records = append(records, rec)
	}
	return records
}

func (f *Facade) demoMessageRecords(tenantID string) []normalize.MessageRecord {
	vendorMsgs := demoMessages()
	records := make([]normalize.MessageRecord, 0, len(vendorMsgs))
	for _, vm := range vendorMsgs {
		rec, warnings := normalize.NormalizeMessage(vm)
		f.logWarnings(tenantID, "message", warnings)
		rec.TenantID = tenantID
		records = append(records, rec)
	}
	return records
}

func demoMessages() []normalize.VendorMessage {
	return []normalize.VendorMessage{
		{
			ID:            "demo-msg-1",
			Direction:     "Inbound",
			From:          normalize.VendorParty{PhoneNumber: "+15550100001", Name: "Demo Customer Alice"},
			To:            normalize.VendorParty{PhoneNumber: "+15550100100"},
			MessageStatus: "Received",
			Subject:       "[DEMO] Hi, can someone come look at the furnace this week?",
			CreationTime:  "2025-01-06T09:05:00Z",
		},
		{
			ID:            "demo-msg-2",
			Direction:     "Outbound",
			From:          normalize.VendorParty{PhoneNumber: "+15550100100"},
			To:            normalize.VendorParty{PhoneNumber: "+15550100001", Name: "Demo Customer Alice"},
			MessageStatus: "Delivered",
			Subject:       "[DEMO] Sure! We have an opening Thursday at 10am.",
			CreationTime:  "2025-01-06T09:12:00Z",
		},
	}
}
