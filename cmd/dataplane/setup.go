package main

import (
	"fmt"

	"market-dashboard/src/feed"
	"market-dashboard/src/interfaces"
	"market-dashboard/src/logger"
	"market-dashboard/src/metrics"
	"market-dashboard/src/models"
	"market-dashboard/src/utils"
)

// -----------------------------------------------------------------------------

// setupFeeds initializes the configured sources and wraps them in a manager
func setupFeeds(config *models.MConfig, exchange interfaces.IEventExchanger, collector *metrics.Collector, appLogger *logger.Logger) (*feed.Manager, error) {
	var sources []interfaces.IFeedSource
	appLogger.Info("Initializing feed sources...")

	synth := config.Feed.Synthetic
	if synth.Enabled {
		scheduler := utils.NewMarketScheduler(synth.Symbols, logger.NewLogger(config, "MarketScheduler"))
		s := feed.NewSyntheticSource(synth, scheduler, logger.NewLogger(config, "SyntheticFeed"))
		sources = append(sources, s)
		appLogger.Info("Added source: %s with %d symbols", s.Name(), len(synth.Symbols))
	}

	kafkaCfg := config.Feed.Kafka
	if kafkaCfg.Enabled {
		k := feed.NewKafkaSource(kafkaCfg, logger.NewLogger(config, "KafkaFeed"))
		sources = append(sources, k)
		appLogger.Info("Added source: %s", k.Name())
	}

	if len(sources) == 0 {
		appLogger.Error("No feed sources enabled.")
		return nil, fmt.Errorf("no feed sources enabled")
	}

	manager := feed.NewManager(sources, exchange, logger.NewLogger(config, "FeedManager"), collector)

	// Publishing what the backbone itself delivered would loop
	if kafkaCfg.Publish {
		if kafkaCfg.Enabled {
			appLogger.Warning("feed.kafka.publish ignored while consuming the same topic")
		} else {
			manager.Publisher = feed.NewKafkaPublisher(kafkaCfg, logger.NewLogger(config, "KafkaPublisher"))
			appLogger.Info("Publishing events to %s", kafkaCfg.Topic)
		}
	}
	return manager, nil
}
