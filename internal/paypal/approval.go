package paypal

// ApprovalURL returns the href of the first link whose rel is exactly approval_url.
// A payment without one cannot be redirected; that is reported as ok=false, not an error.
func ApprovalURL(p *Payment) (string, bool) {
	if p == nil {
		return "", false
	}
	for _, link := range p.Links {
		if link.Rel == RelApprovalURL {
			return link.Href, true
		}
	}
	return "", false
}
