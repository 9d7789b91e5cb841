package app

import (
	"fmt"
	"os"

	"github.com/alanyoungcy/crossarb/internal/config"
	"github.com/alanyoungcy/crossarb/internal/crypto"
	"github.com/alanyoungcy/crossarb/internal/domain"
	"github.com/alanyoungcy/crossarb/internal/venue"
	"github.com/alanyoungcy/crossarb/internal/venue/kalshi"
	"github.com/alanyoungcy/crossarb/internal/venue/paper"
	"github.com/alanyoungcy/crossarb/internal/venue/rest"
)

// buildVenues constructs the configured adapters in config order, each
// wrapped in a pacer, plus the subset that can place orders.
func buildVenues(cfg *config.Config) ([]domain.VenueAdapter, map[string]domain.OrderPlacer, error) {
	adapters := make([]domain.VenueAdapter, 0, len(cfg.Venues))
	placers := make(map[string]domain.OrderPlacer, len(cfg.Venues))
	for _, vc := range cfg.Venues {
		v, err := buildVenue(vc, cfg.Instrument)
		if err != nil {
			return nil, nil, fmt.Errorf("venue %s: %w", vc.Name, err)
		}
		paced := venue.Pace(v)
		adapters = append(adapters, paced)
		if paced.CanPlace() {
			placers[vc.Name] = paced
		}
	}
	return adapters, placers, nil
}

func buildVenue(vc config.VenueConfig, instrument string) (domain.VenueAdapter, error) {
	switch vc.Kind {
	case config.KindPaper, "":
		return paper.New(paper.Config{
			Name:      vc.Name,
			Bid:       vc.PaperBid,
			Ask:       vc.PaperAsk,
			BidSize:   vc.PaperBidSize,
			AskSize:   vc.PaperAskSize,
			KYC:       vc.KYC,
			Jitter:    vc.PaperJitter,
			Latency:   vc.PaperLatency.Duration,
			RateLimit: vc.RateLimit.Duration,
		}), nil

	case config.KindKalshi:
		client := kalshi.NewClient(vc.BaseURL, vc.APIKey)
		if vc.RSAPrivateKeyPath != "" {
			pem, err := loadKalshiKey(vc)
			if err != nil {
				return nil, err
			}
			if err := client.SetRSAPrivateKey(pem); err != nil {
				return nil, err
			}
		}
		return kalshi.NewVenue(client, kalshi.Config{
			Name:      vc.Name,
			KYC:       vc.KYC,
			RateLimit: vc.RateLimit.Duration,
			Ticker:    vc.MarketID(instrument),
		}), nil

	case config.KindREST:
		var signer *crypto.HMACSigner
		if vc.APIKey != "" {
			secret, err := crypto.LoadSecret(crypto.SecretSource{
				Raw:      vc.APISecret,
				Path:     vc.SecretFile,
				Password: vc.SecretPassword,
			})
			if err != nil {
				return nil, err
			}
			signer = crypto.NewHMACSigner(vc.APIKey, secret)
		}
		return rest.NewVenue(rest.NewClient(vc.BaseURL, signer), rest.Config{
			Name:      vc.Name,
			KYC:       vc.KYC,
			RateLimit: vc.RateLimit.Duration,
			Market:    vc.MarketID(instrument),
		}), nil
	}
	return nil, fmt.Errorf("unknown kind %q", vc.Kind)
}

// loadKalshiKey reads the RSA key PEM. With a secret password the file
// holds a sealed secret rather than raw PEM.
func loadKalshiKey(vc config.VenueConfig) ([]byte, error) {
	if vc.SecretPassword != "" {
		s, err := crypto.LoadSecret(crypto.SecretSource{Path: vc.RSAPrivateKeyPath, Password: vc.SecretPassword})
		if err != nil {
			return nil, err
		}
		return []byte(s), nil
	}
	pem, err := os.ReadFile(vc.RSAPrivateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("read rsa key: %w", err)
	}
	return pem, nil
}
