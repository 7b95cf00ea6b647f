package config

import "github.com/spf13/viper"

// setDefaults 设置所有默认配置值
// 目录与编码参数沿用站点原有的 assets/ 布局
func setDefaults(v *viper.Viper) {
	setTargetDefaults(v)
	setProfileDefaults(v)
	setToolsDefaults(v)

	v.SetDefault("concurrency.workers", 1)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.enable_file", false)
	v.SetDefault("logging.log_dir", "./output/logs")

	v.SetDefault("history.enabled", false)
	v.SetDefault("history.db_path", "./output/history.db")

	v.SetDefault("output.generate_report", false)
	v.SetDefault("output.report_dir", "./output/reports")

	v.SetDefault("preflight.check_disk_space", true)
	v.SetDefault("preflight.min_free_mb", 512)
}

// setTargetDefaults 设置源目录与输出目录
func setTargetDefaults(v *viper.Viper) {
	v.SetDefault("videos.source_dir", "assets/media")
	v.SetDefault("videos.output_dir", "assets/media/optimized")
	v.SetDefault("videos.extensions", []string{".mp4", ".mov", ".avi", ".mkv"})

	v.SetDefault("images.source_dir", "assets/img")
	v.SetDefault("images.output_dir", "assets/img/webp")
	v.SetDefault("images.resized_dir", "assets/img/optimized")
	v.SetDefault("images.extensions", []string{".png", ".jpg", ".jpeg"})
	v.SetDefault("images.resize_threshold_bytes", 1024*1024)
	v.SetDefault("images.max_width", 1200)
	v.SetDefault("images.max_height", 1200)
	v.SetDefault("images.webp_quality", 80)
	v.SetDefault("images.jpeg_quality", 85)
}

// setProfileDefaults 设置分类关键字，顺序即优先级
func setProfileDefaults(v *viper.Viper) {
	v.SetDefault("profiles.hero_keywords", []string{"romix", "hero"})
	v.SetDefault("profiles.tutorial_keywords", []string{"Voca", "stereo", "romi"})
	v.SetDefault("profiles.large_image_keywords", []string{})
}

// setToolsDefaults 设置工具路径的默认值
func setToolsDefaults(v *viper.Viper) {
	// 使用相对路径而非绝对路径，让程序能够在系统PATH中查找工具
	v.SetDefault("tools.ffmpeg_path", "ffmpeg")
	v.SetDefault("tools.ffprobe_path", "ffprobe")
	v.SetDefault("tools.timeout", "0s")
	v.SetDefault("tools.max_retries", 0)
}
