package openai

import "fmt"

// classifyPrompt asks for a bare label. The worker normalizes whatever
// comes back, so phrasing drift in the answer is tolerated.
const classifyPrompt = `You are looking at one page of a scanned business document from India.
Classify the page as exactly one of:
- bill (tax invoice, bill of supply, proforma invoice, or similar billing document)
- eway_bill (an e-way bill generated for goods transport)
- unknown (anything else)

Respond with only the label, nothing more.`

const billExtractionPrompt = `Extract all readable data from this bill or invoice page into a single JSON object.
Include every field you can read: invoice number, invoice date, purchase order number,
supplier and buyer details, GSTIN numbers, and the full line item table.
Put line items in an "items" array; for each item include the description, HSN or SAC code,
quantity, unit, rate, amount, tax rate and any CGST/SGST/IGST amounts you can see.
Keep original values as printed. Use null for unreadable fields. Respond with JSON only.`

const ewayExtractionPrompt = `Extract all readable data from this e-way bill page into a single JSON object.
Include the e-way bill number, generated date, validity, document details, supplier and
recipient GSTINs, transporter details, vehicle number, and the goods details table as an
"items" array. Keep original values as printed. Use null for unreadable fields.
Respond with JSON only.`

const genericExtractionPrompt = `Extract all readable data from this document page into a single JSON object.
Capture headings, key-value fields and any tabular data you can see; put table rows into
an "items" array. Keep original values as printed. Respond with JSON only.`

func extractionPrompt(docType string) string {
	switch docType {
	case "bill":
		return billExtractionPrompt
	case "eway_bill":
		return ewayExtractionPrompt
	default:
		return fmt.Sprintf("%s\nThe page was classified as %q.", genericExtractionPrompt, docType)
	}
}
