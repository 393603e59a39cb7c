package bilibili

// UnknownCategory is the label used for category codes missing from the table.
const UnknownCategory = "未知分区"

// categories maps bilibili partition ids (tid) to display labels.
var categories = map[int]string{
	// 动画
	1:   "动画",
	24:  "MAD·AMV",
	25:  "MMD·3D",
	47:  "短片·手书·配音",
	210: "手办·模玩",
	86:  "特摄",
	253: "动漫杂谈",
	27:  "综合",

	// 番剧 / 国创
	13:  "番剧",
	51:  "资讯",
	152: "官方延伸",
	32:  "完结动画",
	33:  "连载动画",
	167: "国创",
	153: "国产动画",
	168: "国产原创相关",
	169: "布袋戏",
	170: "资讯",
	195: "动态漫·广播剧",

	// 音乐
	3:   "音乐",
	28:  "原创音乐",
	31:  "翻唱",
	30:  "VOCALOID·UTAU",
	59:  "演奏",
	193: "MV",
	29:  "音乐现场",
	130: "音乐综合",
	243: "乐评盘点",
	244: "音乐教学",
	194: "电音",

	// 舞蹈
	129: "舞蹈",
	20:  "宅舞",
	154: "舞蹈综合",
	156: "舞蹈教程",
	198: "街舞",
	199: "明星舞蹈",
	200: "国风舞蹈",
	255: "手势·网红舞",

	// 游戏
	4:   "游戏",
	17:  "单机游戏",
	171: "电子竞技",
	172: "手机游戏",
	65:  "网络游戏",
	173: "桌游棋牌",
	121: "GMV",
	136: "音游",
	19:  "Mugen",

	// 知识
	36:  "知识",
	201: "科学科普",
	124: "社科·法律·心理",
	228: "人文历史",
	207: "财经商业",
	208: "校园学习",
	209: "职业职场",
	229: "设计·创意",
	122: "野生技能协会",

	// 科技
	188: "科技",
	95:  "数码",
	230: "软件应用",
	231: "计算机技术",
	232: "科工机械",
	233: "极客DIY",

	// 运动
	234: "运动",
	235: "篮球",
	249: "足球",
	164: "健身",
	236: "竞技体育",
	237: "运动文化",
	238: "运动综合",

	// 汽车
	223: "汽车",
	245: "赛车",
	246: "改装玩车",
	247: "新能源车",
	248: "房车",
	240: "摩托车",
	227: "购车攻略",
	176: "汽车生活",

	// 生活
	160: "生活",
	138: "搞笑",
	250: "出行",
	251: "三农",
	239: "家居房产",
	161: "手工",
	162: "绘画",
	21:  "日常",

	// 美食
	211: "美食",
	76:  "美食制作",
	212: "美食侦探",
	213: "美食测评",
	214: "田园美食",
	215: "美食记录",

	// 动物圈
	217: "动物圈",
	218: "喵星人",
	219: "汪星人",
	222: "小宠异宠",
	221: "野生动物",
	220: "动物二创",
	75:  "动物综合",

	// 鬼畜
	119: "鬼畜",
	22:  "鬼畜调教",
	26:  "音MAD",
	126: "人力VOCALOID",
	216: "鬼畜剧场",
	127: "教程演示",

	// 时尚
	155: "时尚",
	157: "美妆护肤",
	252: "仿妆cos",
	158: "穿搭",
	159: "时尚潮流",

	// 资讯
	202: "资讯",
	203: "热点",
	204: "环球",
	205: "社会",
	206: "综合",

	// 娱乐
	5:   "娱乐",
	71:  "综艺",
	241: "娱乐杂谈",
	242: "粉丝创作",
	137: "明星综合",

	// 影视
	181: "影视",
	182: "影视杂谈",
	183: "影视剪辑",
	85:  "小剧场",
	184: "预告·资讯",

	// 纪录片
	177: "纪录片",
	37:  "人文·历史",
	178: "科学·探索·自然",
	179: "军事",
	180: "社会·美食·旅行",

	// 电影
	23:  "电影",
	147: "华语电影",
	145: "欧美电影",
	146: "日本电影",
	83:  "其他国家",

	// 电视剧
	11:  "电视剧",
	185: "国产剧",
	187: "海外剧",
}

// CategoryName returns the display label for a partition id.
func CategoryName(tid int) string {
	if name, ok := categories[tid]; ok {
		return name
	}
	return UnknownCategory
}
