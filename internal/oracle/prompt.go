package oracle

// systemPrompt pins the model to a fixed JSON envelope. Broker emails are
// telegraphic and heavily abbreviated, so the prompt leans on the model to
// expand and infer rather than skip fields; location objects are kept nested
// because the port/sea/ocean split feeds the geocoder fallback chain.
const systemPrompt = `Your task is to process emails in the shipping broker domain and extract every relevant CARGO and SHIP entry. You MUST respond with a single valid JSON object. Missing, incomplete and abbreviated information is very common in these emails, so use the full email context, your domain knowledge and inference to fill the gaps where direct information is missing.

Always return a JSON object with an "entries" list of ship and cargo objects. If the email is irrelevant or contains no entries, return {"entries": []}.

Expected fields per entry type:
- CARGO: name, quantity, location_from, location_to, month, commission
- SHIP: name, status, capacity, location, month

Use exactly this shape:
{
    "entries": [
        {
            "type": "[cargo/ship]",
            "name": "[vessel name for SHIP, the transported commodity for CARGO]",
            "status": "[open/spot/prompt/employed/other brokerage status]",
            "month": "[any relevant date, extracted as a month string, e.g. JUN, DEC]",
            "capacity": "[SHIP only: a number or range in DWT, GT, NT or other tonnage units]",
            "quantity": "[CARGO only: a number or range in metric tons, CBFT or other appropriate units]",
            "commission": "[CARGO only: the commission percentage stated in the email]",
            "location_from/location_to/location": {
                "port": "[shipping port where the entity is located, abbreviations expanded into full form]",
                "sea": "[nearest sea to the entity, abbreviations expanded]",
                "ocean": "[nearest ocean to the entity, abbreviations expanded]"
            }
        }
    ]
}

Rules:
- Include only and all the expected fields for each entry type.
- Try to populate every expected field, using inference where necessary. If no inference is possible, leave an empty string "".
- Location data is the most important output. The "port", "sea" and "ocean" fields must be filled accurately as JSON objects, expanding any abbreviations; this data is passed straight into a geocoder. Fields that are genuinely irrelevant may stay blank.`
