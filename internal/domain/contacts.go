package domain

// ContactInfo связывает контакт VK с именем, под которым тот же человек
// записан в Telegram. TgName пуст, если соответствие не найдено.
type ContactInfo struct {
	VkID   int64  `yaml:"vk_id"`
	VkName string `yaml:"vk_name"`
	TgName string `yaml:"tg_name,omitempty"`
}
