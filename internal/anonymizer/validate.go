package anonymizer

// ValidateAttributeRequest checks the flat-attribute preconditions
func ValidateAttributeRequest(req *AttributeRequest) error {
	if req == nil {
		return validationErrorf("empty request")
	}
	if len(req.Data) <= 1 {
		return validationErrorf("not enough data in request: %d <= 1", len(req.Data))
	}
	if len(req.Pets) == 0 {
		return validationErrorf("not enough pets in request: need at least 1")
	}
	for i, d := range req.Data {
		if len(d.Hierarchies) == 0 {
			return validationErrorf("value at index %d has an empty hierarchy", i)
		}
	}
	return nil
}

// ValidateObjectRequest checks the composite-object preconditions. Row shape
// is checked later, against the inferred schema, by the table assembler.
func ValidateObjectRequest(req *ObjectRequest) error {
	if req == nil {
		return validationErrorf("empty request")
	}
	if len(req.Data) <= 1 {
		return validationErrorf("not enough data in request: %d <= 1", len(req.Data))
	}
	if len(req.Pets) == 0 {
		return validationErrorf("not enough pets in request: need at least 1")
	}
	if len(req.Data[0].Values) == 0 {
		return validationErrorf("unable to determine attribute names: first object contains no attributes")
	}
	return nil
}
