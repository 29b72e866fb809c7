package normalize

import (
	"regexp"
	"strings"

	"github.com/aistate/aml-engine/internal/textutil"
	"github.com/aistate/aml-engine/pkg/models"
)

// Channel detection: the bank's own operation code is authoritative when it
// is present; free-text regexes over title+counterparty are the fallback.
// Both forms are checked against the diacritic and ASCII-folded text.

var (
	blikPhoneRe = regexp.MustCompile(`(?i)przelew (na|z) telefon`)

	fallbackRules = []struct {
		re      *regexp.Regexp
		channel models.Channel
	}{
		{regexp.MustCompile(`(?i)blik`), models.ChannelBlikMerchant},
		{regexp.MustCompile(`(?i)kart[aąy]|visa|mastercard|maestro`), models.ChannelCard},
		{regexp.MustCompile(`(?i)bankomat|atm|wypłata|wpłata gotówk|wyplata|wplata gotowk`), models.ChannelCash},
		{regexp.MustCompile(`(?i)zwrot|refund|korekta`), models.ChannelRefund},
		{regexp.MustCompile(`(?i)opłata|oplata|prowizja|odsetki|fee`), models.ChannelFee},
		{regexp.MustCompile(`(?i)przelew|transfer|zleceni`), models.ChannelTransfer},
	}
)

// DetectChannel resolves the payment rail for one transaction.
func DetectChannel(bankCategory, title, counterparty string) models.Channel {
	bc := strings.ToUpper(bankCategory)

	switch {
	case strings.Contains(bc, "TR.KART"):
		return models.ChannelCard
	case strings.Contains(bc, "PRZELEW"), strings.Contains(bc, "ST.ZLEC"):
		return models.ChannelTransfer
	case strings.Contains(bc, "P.BLIK"):
		if blikPhoneRe.MatchString(title) || blikPhoneRe.MatchString(textutil.FoldASCII(title)) {
			return models.ChannelBlikP2P
		}
		return models.ChannelBlikMerchant
	case strings.Contains(bc, "TR.BLIK"):
		return models.ChannelBlikMerchant
	case strings.Contains(bc, "OPŁATA"), strings.Contains(bc, "OPLATA"),
		strings.Contains(bc, "PROWIZJA"), strings.Contains(bc, "ODSETKI"):
		return models.ChannelFee
	}

	text := title + " " + counterparty
	folded := textutil.FoldASCII(text)
	for _, rule := range fallbackRules {
		if rule.re.MatchString(text) || rule.re.MatchString(folded) {
			if rule.channel == models.ChannelBlikMerchant && rule.re.String() == `(?i)blik` {
				if blikPhoneRe.MatchString(text) || blikPhoneRe.MatchString(folded) {
					return models.ChannelBlikP2P
				}
			}
			return rule.channel
		}
	}
	return models.ChannelOther
}
