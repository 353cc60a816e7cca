// Команда converter — CLI конвейера конвертации: конвертация выгрузки VK в
// историю Telegram, подготовка и проверка файла соответствия контактов,
// предпросмотр транскрипта.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gotd/td/tg"

	"vk-tg-transfer/internal/adapters/exporter"
	"vk-tg-transfer/internal/adapters/storage"
	"vk-tg-transfer/internal/adapters/telegram"
	"vk-tg-transfer/internal/adapters/vk"
	"vk-tg-transfer/internal/core/services"
	"vk-tg-transfer/internal/domain"
	"vk-tg-transfer/internal/log"
	"vk-tg-transfer/internal/pkg/config"
)

const usage = `Usage: converter <command> [flags]

Commands:
  convert           конвертировать выгрузку VK в историю Telegram
  contacts-prepare  построить черновик файла соответствия контактов
  contacts-check    проверить имена Telegram в файле соответствия
  transcript        сохранить историю Telegram как текстовый транскрипт
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger := log.NewLogger(cfg.Logging.Level)
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	switch os.Args[1] {
	case "convert":
		err = runConvert(ctx, cfg, logger, os.Args[2:])
	case "contacts-prepare":
		err = runContactsPrepare(ctx, cfg, logger, os.Args[2:])
	case "contacts-check":
		err = runContactsCheck(ctx, cfg, logger, os.Args[2:])
	case "transcript":
		err = runTranscript(cfg, os.Args[2:])
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	if err != nil {
		logger.Error("command failed", "command", os.Args[1], "error", err)
		os.Exit(1)
	}
}

// runConvert выполняет полный конвейер: загрузка выгрузки VK, конвертация
// сообщений и медиа, сохранение итоговой истории Telegram.
func runConvert(ctx context.Context, cfg *config.Config, logger *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("convert", flag.ExitOnError)
	historyPath := fs.String("history", config.DefaultVkExportFile, "путь к выгрузке VK")
	outPath := fs.String("out", config.DefaultTgExportFile, "путь для истории Telegram")
	mediaDir := fs.String("media-dir", config.DefaultMediaExportDir, "пустой каталог для медиафайлов")
	contactsPath := fs.String("contacts", "", "файл соответствия контактов (необязательно)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	vkHistory, err := storage.NewVkHistoryStorage().LoadHistory(*historyPath)
	if err != nil {
		return fmt.Errorf("загрузка истории VK: %w", err)
	}
	logger.Info("VK history loaded", "path", *historyPath, "message_count", len(vkHistory.Messages))

	contacts, err := loadContactsIfSet(*contactsPath)
	if err != nil {
		return err
	}

	api := vk.NewClient(cfg.Vk.AccessToken, cfg.Vk.APIVersion, vk.WithLogger(logger))
	factory, err := services.NewHistoryConverterFactory(api, cfg, logger)
	if err != nil {
		return err
	}
	converter, err := factory.Create(contacts, *mediaDir)
	if err != nil {
		return err
	}

	tgHistory, err := converter.Convert(ctx, vkHistory)
	if err != nil {
		return fmt.Errorf("конвертация истории: %w", err)
	}

	if err := storage.NewTgHistoryStorage().SaveHistory(tgHistory, *outPath); err != nil {
		return fmt.Errorf("сохранение истории: %w", err)
	}
	logger.Info("Conversion finished", "out", *outPath, "media_dir", *mediaDir, "message_count", len(tgHistory.Messages))
	return nil
}

// runContactsPrepare строит черновик файла соответствия по истории VK и
// списку контактов Telegram.
func runContactsPrepare(ctx context.Context, cfg *config.Config, logger *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("contacts-prepare", flag.ExitOnError)
	historyPath := fs.String("history", config.DefaultVkExportFile, "путь к выгрузке VK")
	outPath := fs.String("out", config.DefaultContactsMappingFile, "путь для файла соответствия")
	if err := fs.Parse(args); err != nil {
		return err
	}

	vkHistory, err := storage.NewVkHistoryStorage().LoadHistory(*historyPath)
	if err != nil {
		return fmt.Errorf("загрузка истории VK: %w", err)
	}

	api := vk.NewClient(cfg.Vk.AccessToken, cfg.Vk.APIVersion, vk.WithLogger(logger))
	resolver := services.NewUsernameResolver(api, nil, logger)

	return withTelegram(ctx, cfg, logger, func(ctx context.Context, tgAPI *tg.Client) error {
		manager := services.NewContactsManager(resolver, telegram.NewContactsLister(tgAPI),
			storage.NewContactsStorage(), logger)
		if err := manager.PrepareMapping(ctx, vkHistory, *outPath); err != nil {
			return err
		}
		fmt.Printf("Check file %q and fill in missing tg names\n", *outPath)
		return nil
	})
}

// runContactsCheck сверяет имена Telegram из файла соответствия со списком
// контактов пользователя.
func runContactsCheck(ctx context.Context, cfg *config.Config, logger *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("contacts-check", flag.ExitOnError)
	mappingPath := fs.String("mapping", config.DefaultContactsMappingFile, "путь к файлу соответствия")
	if err := fs.Parse(args); err != nil {
		return err
	}

	api := vk.NewClient(cfg.Vk.AccessToken, cfg.Vk.APIVersion, vk.WithLogger(logger))
	resolver := services.NewUsernameResolver(api, nil, logger)

	return withTelegram(ctx, cfg, logger, func(ctx context.Context, tgAPI *tg.Client) error {
		manager := services.NewContactsManager(resolver, telegram.NewContactsLister(tgAPI),
			storage.NewContactsStorage(), logger)
		wrong, err := manager.CheckMapping(ctx, *mappingPath)
		if err != nil {
			return err
		}
		if len(wrong) == 0 {
			fmt.Println("All provided tg names are found in telegram contacts")
			return nil
		}
		fmt.Println("Some tg names are missing in telegram contacts.")
		fmt.Println(`Either fix them or skip the contact by setting tg_name to an empty string.`)
		for i, c := range wrong {
			fmt.Printf("  %d.\ttg_name=%q\tvk_name=%q\tvk_id=%d\n", i+1, c.TgName, c.VkName, c.VkID)
		}
		return nil
	})
}

// runTranscript сохраняет историю Telegram в виде текстового транскрипта,
// пригодного для ручной проверки перед импортом.
func runTranscript(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("transcript", flag.ExitOnError)
	historyPath := fs.String("history", config.DefaultTgExportFile, "путь к истории Telegram")
	outPath := fs.String("out", "chat.txt", "путь для транскрипта")
	if err := fs.Parse(args); err != nil {
		return err
	}

	tgHistory, err := storage.NewTgHistoryStorage().LoadHistory(*historyPath)
	if err != nil {
		return fmt.Errorf("загрузка истории Telegram: %w", err)
	}

	location, err := cfg.Location()
	if err != nil {
		return err
	}
	transcript, err := exporter.NewWhatsAppAndroidEncoder(location).Encode(tgHistory)
	if err != nil {
		return fmt.Errorf("сериализация транскрипта: %w", err)
	}

	if err := os.WriteFile(*outPath, []byte(transcript), 0o644); err != nil {
		return fmt.Errorf("запись транскрипта: %w", err)
	}
	return nil
}

// withTelegram запускает клиент Telegram и выполняет f внутри его сессии.
func withTelegram(ctx context.Context, cfg *config.Config, logger *slog.Logger, f func(ctx context.Context, api *tg.Client) error) error {
	client := telegram.NewClient(telegram.ClientConfig{
		APIID:       cfg.Telegram.APIID,
		APIHash:     cfg.Telegram.APIHash,
		PhoneNumber: cfg.Telegram.PhoneNumber,
		SessionPath: cfg.Telegram.SessionFile,
	}, telegram.WithClientLogger(logger))
	return client.Run(ctx, f)
}

func loadContactsIfSet(path string) ([]domain.ContactInfo, error) {
	if path == "" {
		return nil, nil
	}
	contacts, err := storage.NewContactsStorage().LoadContacts(path)
	if err != nil {
		return nil, fmt.Errorf("загрузка файла соответствия: %w", err)
	}
	return contacts, nil
}
