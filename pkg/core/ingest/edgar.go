package ingest

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// Form sets used when building filing indices and filtering facts. Foreign
// private issuers file 20-F/6-K instead of 10-K/10-Q.
var (
	AnnualForms    = []string{"10-K", "10-K/A", "20-F"}
	QuarterlyForms = []string{"10-Q", "10-Q/A", "6-K"}
)

// Issuer is one resolved registrant.
type Issuer struct {
	CIK    string `json:"cik"` // zero-padded to 10 digits
	Name   string `json:"name"`
	Ticker string `json:"ticker,omitempty"`
}

// FilingRef locates one filing document in the archive.
type FilingRef struct {
	CIK             string `json:"cik"`
	AccessionNumber string `json:"accession_number"`
	PrimaryDocument string `json:"primary_document"`
	Form            string `json:"form"`
	FilingDate      string `json:"filing_date"`
}

// ID is the stable identifier candidates carry back to their source filing.
func (r FilingRef) ID() string { return r.AccessionNumber }

// PadCIK zero-pads a CIK to the 10 digits the data APIs require.
func PadCIK(cik string) string {
	return fmt.Sprintf("%010s", strings.TrimLeft(cik, "0"))
}

// ResolveIssuer turns a ticker or bare CIK into a padded CIK plus the
// registrant name from the submissions API.
func (c *Client) ResolveIssuer(ctx context.Context, identifier string) (Issuer, error) {
	identifier = strings.TrimSpace(identifier)

	var issuer Issuer
	if _, err := strconv.Atoi(identifier); err == nil {
		issuer.CIK = PadCIK(identifier)
	} else {
		cik, ticker, err := c.lookupTicker(ctx, identifier)
		if err != nil {
			return Issuer{}, err
		}
		issuer.CIK = cik
		issuer.Ticker = ticker
	}

	subs, err := c.submissions(ctx, issuer.CIK)
	if err != nil {
		return Issuer{}, err
	}
	issuer.Name = subs.Name
	if issuer.Ticker == "" && len(subs.Tickers) > 0 {
		issuer.Ticker = subs.Tickers[0]
	}
	return issuer, nil
}

// lookupTicker scans the SEC ticker mapping file.
// Response shape: { "0": {"cik_str": 320193, "ticker": "AAPL", "title": "..."}, ... }
func (c *Client) lookupTicker(ctx context.Context, ticker string) (string, string, error) {
	url := c.filesURL + "/company_tickers.json"

	var mapping map[string]struct {
		CIK    int    `json:"cik_str"`
		Ticker string `json:"ticker"`
		Title  string `json:"title"`
	}
	if err := c.getJSON(ctx, url, &mapping); err != nil {
		return "", "", err
	}

	upper := strings.ToUpper(ticker)
	for _, entry := range mapping {
		if entry.Ticker == upper {
			return fmt.Sprintf("%010d", entry.CIK), entry.Ticker, nil
		}
	}
	return "", "", &FetchError{URL: url, Err: fmt.Errorf("ticker %s not found in SEC database", ticker)}
}

// submissionsResponse is the top of the submissions API payload. Filing
// attributes arrive as parallel arrays.
type submissionsResponse struct {
	Name    string   `json:"name"`
	Tickers []string `json:"tickers"`
	Filings struct {
		Recent struct {
			AccessionNumber []string `json:"accessionNumber"`
			FilingDate      []string `json:"filingDate"`
			Form            []string `json:"form"`
			PrimaryDocument []string `json:"primaryDocument"`
		} `json:"recent"`
	} `json:"filings"`
}

func (c *Client) submissions(ctx context.Context, cik string) (*submissionsResponse, error) {
	url := fmt.Sprintf("%s/submissions/CIK%s.json", c.dataURL, PadCIK(cik))
	var subs submissionsResponse
	if err := c.getJSON(ctx, url, &subs); err != nil {
		return nil, err
	}
	return &subs, nil
}

// FilingIndex lists the issuer's most recent filings of the given forms,
// newest first, capped at limit (0 = no cap).
func (c *Client) FilingIndex(ctx context.Context, cik string, forms []string, limit int) ([]FilingRef, error) {
	subs, err := c.submissions(ctx, cik)
	if err != nil {
		return nil, err
	}

	wanted := make(map[string]bool, len(forms))
	for _, f := range forms {
		wanted[f] = true
	}

	recent := subs.Filings.Recent
	var refs []FilingRef
	for i := range recent.AccessionNumber {
		if len(forms) > 0 && !wanted[recent.Form[i]] {
			continue
		}
		refs = append(refs, FilingRef{
			CIK:             PadCIK(cik),
			AccessionNumber: recent.AccessionNumber[i],
			PrimaryDocument: recent.PrimaryDocument[i],
			Form:            recent.Form[i],
			FilingDate:      recent.FilingDate[i],
		})
		if limit > 0 && len(refs) >= limit {
			break
		}
	}
	return refs, nil
}

// FilingMarkup fetches the primary document of one filing from the archive.
func (c *Client) FilingMarkup(ctx context.Context, ref FilingRef) (string, error) {
	cikNum := strings.TrimLeft(ref.CIK, "0")
	accession := strings.ReplaceAll(ref.AccessionNumber, "-", "")
	url := fmt.Sprintf("%s/%s/%s/%s", c.archiveURL, cikNum, accession, ref.PrimaryDocument)

	body, err := c.get(ctx, url)
	if err != nil {
		return "", err
	}
	return string(body), nil
}
